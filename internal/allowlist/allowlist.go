// Package allowlist decides which senders may act as requesters.
package allowlist

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// List matches sender addresses against exact entries, "*@domain" wildcards and an
// optional expression. An empty list without an expression allows everyone.
type List struct {
	exact   map[string]struct{}
	domains map[string]struct{}
	program *vm.Program
	source  string
}

// env is the expression environment. Keys are the identifiers available to the expression.
func env(sender string) map[string]any {
	local, domain := Split(sender)
	return map[string]any{
		"sender": sender,
		"local":  local,
		"domain": domain,
	}
}

func New(entries []string, expression string) (*List, error) {
	l := &List{
		exact:   make(map[string]struct{}),
		domains: make(map[string]struct{}),
		source:  expression,
	}
	for idx, entry := range entries {
		entry = Normalize(entry)
		switch {
		case strings.HasPrefix(entry, "*@") && len(entry) > 2:
			l.domains[entry[2:]] = struct{}{}
		case strings.Count(entry, "@") == 1 && !strings.HasPrefix(entry, "@") && !strings.HasSuffix(entry, "@"):
			l.exact[entry] = struct{}{}
		default:
			return nil, fmt.Errorf("allow-list entry #%d ('%s') is neither an address nor *@domain", idx, entry)
		}
	}
	if expression != "" {
		program, err := expr.Compile(expression, expr.Env(env("")), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compiling allow-list expression: %w", err)
		}
		l.program = program
	}
	return l, nil
}

// Empty reports whether the list restricts nothing.
func (l *List) Empty() bool {
	return l == nil || (len(l.exact) == 0 && len(l.domains) == 0 && l.program == nil)
}

// Allowed reports whether sender may act as a requester.
// An expression that fails at runtime denies.
func (l *List) Allowed(sender string) bool {
	if l.Empty() {
		return true
	}
	sender = Normalize(sender)
	if _, ok := l.exact[sender]; ok {
		return true
	}
	_, domain := Split(sender)
	if _, ok := l.domains[domain]; ok && domain != "" {
		return true
	}
	if l.program == nil {
		return false
	}
	out, err := expr.Run(l.program, env(sender))
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// Normalize trims and lower-cases an address.
func Normalize(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// Split returns the local part and the domain of an address.
// Addresses without '@' have an empty domain.
func Split(addr string) (local, domain string) {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}
