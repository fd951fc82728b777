// Package validate gates generated scripts before asset production. A
// structural schema check rejects malformed provider output outright;
// the semantic checks compare the script against the run spec and
// accumulate every issue found so one regeneration attempt can fix all
// of them.
package validate
