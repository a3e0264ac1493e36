// Package typeref compares generic type names that may spell type parameters
// as positional placeholders (!0, !!1) on one side and by name on the other.
package typeref

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// ErrBothPlaceholders is returned when both names being compared contain
// placeholders; a binding needs a concrete side.
var ErrBothPlaceholders = errors.New("typeref: can't compare two type names when both contain generic placeholders")

// Comparer compares type names.
//
// Params and MethodParams list the named type and method parameters in
// declaration order. A placeholder that binds to one of those names must bind
// to the name at its own index, so "Pair<!0, !1>" matches "Pair<K, V>" but not
// "Pair<V, K>" when Params is [K V].
//
// When both lists are empty the order is inferred from the named side: names
// that look like type parameters (T, TKey, K) are ordered by role (key before
// value, input before output, then numeric suffix), or by first appearance
// when a role is unknown.
type Comparer struct {
	Params       []string
	MethodParams []string
}

// Equal compares a and b with the zero Comparer, so placeholders bind to
// parameters in inferred declaration order.
func Equal(a, b string) (bool, error) {
	return Comparer{}.Equal(a, b)
}

// Equal reports whether a and b likely denote the same type.
func (c Comparer) Equal(a, b string) (bool, error) {
	if a == b {
		return true, nil
	}
	a, b = stripSpace(a), stripSpace(b)
	if a == b {
		return true, nil
	}
	if strings.Contains(a, "!") && strings.Contains(b, "!") {
		return false, ErrBothPlaceholders
	}
	if len(c.Params) == 0 && len(c.MethodParams) == 0 {
		c = inferred(a, b)
	}
	return c.equal(a, b, make(map[string]string))
}

// inferred builds a Comparer whose parameter order comes from the named side.
// Names mixing type and method placeholders are left unchecked.
func inferred(a, b string) Comparer {
	tmpl, named := a, b
	if !strings.Contains(a, "!") {
		tmpl, named = b, a
	}
	params := paramOrder(named)
	hasMethod := strings.Contains(tmpl, "!!")
	hasType := strings.Contains(strings.ReplaceAll(tmpl, "!!", ""), "!")
	switch {
	case hasType && !hasMethod:
		return Comparer{Params: params}
	case hasMethod && !hasType:
		return Comparer{MethodParams: params}
	}
	return Comparer{}
}

// paramOrder lists the parameter-like names in name, in likely declaration
// order.
func paramOrder(name string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(name, func(r rune) bool { return r == '<' || r == ',' || r == '>' }) {
		if i := strings.IndexByte(tok, '`'); i >= 0 {
			tok = tok[:i]
		}
		if !isParamName(tok) || seen[tok] {
			continue
		}
		seen[tok] = true
		names = append(names, tok)
	}

	ranks := make(map[string]int, len(names))
	used := make(map[int]bool, len(names))
	for _, n := range names {
		r, ok := roleRank(n)
		if !ok || used[r] {
			return names
		}
		ranks[n] = r
		used[r] = true
	}
	sort.SliceStable(names, func(i, j int) bool { return ranks[names[i]] < ranks[names[j]] })
	return names
}

func isParamName(s string) bool {
	switch {
	case len(s) == 1:
		return s[0] >= 'A' && s[0] <= 'Z'
	case len(s) > 1 && s[0] == 'T':
		return unicode.IsUpper(rune(s[1])) || unicode.IsDigit(rune(s[1]))
	}
	return false
}

func roleRank(name string) (int, bool) {
	role := name
	if len(name) > 1 {
		role = name[1:]
	}
	switch role {
	case "Key", "K", "In", "Input", "Source", "Arg":
		return 0, true
	case "Value", "V", "Elem", "Out", "Output", "Result", "Ret":
		return 1, true
	}
	if n, err := strconv.Atoi(role); err == nil {
		return n, true
	}
	return 0, false
}

func (c Comparer) equal(a, b string, bound map[string]string) (bool, error) {
	if isPlaceholder(a) {
		var ok bool
		if a, ok = c.bind(a, b, bound); !ok {
			return false, nil
		}
	} else if isPlaceholder(b) {
		var ok bool
		if b, ok = c.bind(b, a, bound); !ok {
			return false, nil
		}
	}
	if !strings.Contains(a, "!") && !strings.Contains(b, "!") {
		return a == b, nil
	}

	symsA, err := Symbols(a)
	if err != nil {
		return false, err
	}
	symsB, err := Symbols(b)
	if err != nil {
		return false, err
	}
	if len(symsA) != len(symsB) {
		return false, nil
	}
	if len(symsA) == 1 && symsA[0] == a && symsB[0] == b {
		return a == b, nil
	}
	for i := range symsA {
		ok, err := c.equal(symsA[i], symsB[i], bound)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// bind maps placeholder to typ, or returns its earlier binding.
func (c Comparer) bind(placeholder, typ string, bound map[string]string) (string, bool) {
	if prev, ok := bound[placeholder]; ok {
		return prev, true
	}
	params := c.Params
	if strings.HasPrefix(placeholder, "!!") {
		params = c.MethodParams
	}
	if idx := indexOf(params, typ); idx >= 0 {
		n, err := strconv.Atoi(strings.TrimLeft(placeholder, "!"))
		if err != nil || n != idx {
			return "", false
		}
	}
	bound[placeholder] = typ
	return typ, true
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func isPlaceholder(s string) bool {
	return strings.HasPrefix(s, "!")
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Symbols splits a type name into its top-level symbols: the outer name
// followed by each generic argument, e.g. List`1<Ref<T>> gives [List Ref<T>].
// Arity markers are dropped.
func Symbols(name string) ([]string, error) {
	var (
		out   []string
		sym   strings.Builder
		depth int
	)
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch ch {
		case '`':
			for i+1 < len(name) && name[i+1] >= '0' && name[i+1] <= '9' {
				i++
			}
		case '<':
			if depth == 0 {
				out = append(out, sym.String())
				sym.Reset()
			} else {
				sym.WriteByte(ch)
			}
			depth++
		case ',':
			switch depth {
			case 0:
				return nil, fmt.Errorf("typeref: unexpected comma in type name %q", name)
			case 1:
				out = append(out, sym.String())
				sym.Reset()
			default:
				sym.WriteByte(ch)
			}
		case '>':
			switch depth {
			case 0:
				return nil, fmt.Errorf("typeref: unexpected closing bracket in type name %q", name)
			case 1:
				out = append(out, sym.String())
				sym.Reset()
			default:
				sym.WriteByte(ch)
			}
			depth--
		default:
			sym.WriteByte(ch)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("typeref: unclosed generic in type name %q", name)
	}
	if sym.Len() > 0 {
		out = append(out, sym.String())
	}
	return out, nil
}
