package typeref

import (
	"errors"
	"reflect"
	"testing"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "modhost.Config", "modhost.Config", true},
		{"different", "modhost.Config", "modhost.Settings", false},
		{"whitespace", "Dictionary<!0, Holder<!1>>", "Dictionary<TKey,Holder<TValue>>", true},
		{"placeholder left", "Dictionary<!0,Holder<!1>>", "Dictionary<TKey,Holder<TValue>>", true},
		{"placeholder right", "Dictionary<TKey,Holder<TValue>>", "Dictionary<!0,Holder<!1>>", true},
		{"arity markers", "Dictionary`2<!0,Holder`1<!1>>", "Dictionary`2<TKey,Holder`1<TValue>>", true},
		{"concrete binding", "List<!0>", "List<string>", true},
		{"nested binding", "List<!0>", "List<Holder<int>>", true},
		{"consistent reuse", "Pair<!0,!0>", "Pair<int,int>", true},
		{"inconsistent reuse", "Pair<!0,!0>", "Pair<int,string>", false},
		{"literal mismatch", "Dictionary<!0,Holder<!1>>", "Dictionary<TKey,Wrapper<TValue>>", false},
		{"count mismatch", "Dictionary<!0,!1>", "Dictionary<TKey>", false},
		{"method placeholder", "Func<!!0>", "Func<T>", true},
		{"swapped parameters", "Dictionary<!0, Holder<!1>>", "Dictionary<TValue, Holder<TKey>>", false},
		{"swapped parameters right", "Dictionary<TValue,Holder<TKey>>", "Dictionary<!0,Holder<!1>>", false},
		{"reordered placeholders", "Dictionary<!1,Holder<!0>>", "Dictionary<TValue,Holder<TKey>>", true},
		{"numbered parameters", "Func<!1,!0>", "Func<T2,T1>", true},
		{"numbered parameters swapped", "Func<!0,!1>", "Func<T2,T1>", false},
		{"appearance order", "Pair<!0,!1>", "Pair<A,B>", true},
		{"method roles", "Func<!!0,!!1>", "Func<TIn,TOut>", true},
		{"method roles swapped", "Func<!!0,!!1>", "Func<TOut,TIn>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Equal(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Equal(%q, %q): %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestComparerPositionalParams(t *testing.T) {
	c := Comparer{Params: []string{"TKey", "TValue"}}
	tests := []struct {
		b    string
		want bool
	}{
		{"Dictionary<TKey, Holder<TValue>>", true},
		{"Dictionary<TValue, Holder<TKey>>", false},
		{"Dictionary<int, Holder<TValue>>", true},
	}
	for _, tt := range tests {
		got, err := c.Equal("Dictionary<!0, Holder<!1>>", tt.b)
		if err != nil {
			t.Fatalf("Equal(%q): %v", tt.b, err)
		}
		if got != tt.want {
			t.Errorf("Equal(%q) = %v, want %v", tt.b, got, tt.want)
		}
	}

	m := Comparer{MethodParams: []string{"TIn", "TOut"}}
	if ok, _ := m.Equal("Func<!!1,!!0>", "Func<TOut,TIn>"); !ok {
		t.Error("method params in declared order should match")
	}
	if ok, _ := m.Equal("Func<!!0,!!1>", "Func<TOut,TIn>"); ok {
		t.Error("swapped method params should not match")
	}
}

func TestEqualErrors(t *testing.T) {
	if _, err := Equal("List<!0>", "List<!1>"); !errors.Is(err, ErrBothPlaceholders) {
		t.Errorf("both placeholders err = %v, want ErrBothPlaceholders", err)
	}
	if ok, err := Equal("List<!0>", "List<!0>"); err != nil || !ok {
		t.Errorf("identical placeholder names = %v, %v; want true, nil", ok, err)
	}
	for _, bad := range []string{"List,!0", "List<!0>>", "List<!0"} {
		if _, err := Equal(bad, "List<int>"); err == nil {
			t.Errorf("Equal(%q) should fail", bad)
		}
	}
}

func TestParamOrder(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Dictionary<TValue,Holder<TKey>>", []string{"TKey", "TValue"}},
		{"Func`2<TResult,TSource>", []string{"TSource", "TResult"}},
		{"Tuple<T3,T1,T2>", []string{"T1", "T2", "T3"}},
		{"Pair<B,A>", []string{"B", "A"}},
		{"Map<TKey,Holder<T>>", []string{"TKey", "T"}},
		{"List<int>", nil},
	}
	for _, tt := range tests {
		if got := paramOrder(tt.name); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("paramOrder(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSymbols(t *testing.T) {
	got, err := Symbols("Dictionary`2<!0,Holder`1<!1>>")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"Dictionary", "!0", "Holder<!1>"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Symbols = %q, want %q", got, want)
	}
}
