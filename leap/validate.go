package leap

import "fmt"

// Warning is a non-fatal notice that a marker count reached its cap.
type Warning struct {
	Kind  Kind
	Count int
	Max   int
}

// String implements the Stringer interface.
func (w Warning) String() string {
	return fmt.Sprintf("number of %ss used equals maximum allowed (%d)", w.Kind, w.Max)
}

// validate enforces the label and goto caps.
func validate(st *SymbolTable, maxLabels, maxGotos int) ([]Warning, error) {
	var warnings []Warning

	switch n := st.NumLabels(); {
	case n > maxLabels:
		return nil, &LabelLimitError{Count: n, Max: maxLabels}
	case n == maxLabels:
		warnings = append(warnings, Warning{Kind: KindLabel, Count: n, Max: maxLabels})
	}

	switch n := st.NumGotos(); {
	case n > maxGotos:
		return nil, &GotoLimitError{Count: n, Max: maxGotos}
	case n == maxGotos:
		warnings = append(warnings, Warning{Kind: KindGoto, Count: n, Max: maxGotos})
	}

	return warnings, nil
}
