// Package resolver expands manifest targets into concrete
// source/destination mappings.
//
// Destination templates may reference environment variables as ${VAR}
// or {VAR}, with an optional ${VAR:=default} form, and positional
// wildcard captures as %1..%N. Sources may contain shell-style glob
// wildcards (*, ?, [...]); each wildcard group's matched substring is
// assigned positionally to the %N tokens.
//
// Resolution is deterministic: the same filesystem state and
// environment always produce the same ordered mapping list.
package resolver
