// Package layout models the run artifacts shared between stages: the
// script produced by planning and the unified layout the producers and
// renderer consume. Both persist as JSON under the run directory.
package layout
