package bridge

import (
	"strconv"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
)

// args gives typed access to the positional arguments of a slot call.
// Every accessor fails with an InvalidArgumentError naming the argument.
type args struct {
	vals  []entities.Value
	names []string
}

func (a args) name(i int) string {
	if i < len(a.names) {
		return a.names[i]
	}
	return "arg" + strconv.Itoa(i+1)
}

func (a args) invalid(i int, reason string) error {
	return &bridgeerrors.InvalidArgumentError{Argument: a.name(i), Reason: reason}
}

// strings returns a character vector. NULL yields nil; NA elements are "".
func (a args) strings(i int) ([]string, error) {
	v := a.vals[i]
	if v.IsNull() {
		return nil, nil
	}
	ss, ok := v.AsStrings()
	if !ok {
		return nil, a.invalid(i, "must be a character vector, got "+string(v.Kind))
	}
	return ss, nil
}

// strictStrings is strings with NA rejected.
func (a args) strictStrings(i int) ([]string, error) {
	ss, err := a.strings(i)
	if err != nil {
		return nil, err
	}
	for j := range ss {
		if a.vals[i].IsNA(j) {
			return nil, a.invalid(i, "element "+strconv.Itoa(j+1)+" is NA")
		}
	}
	return ss, nil
}

// str returns the first element of a character vector, or def for NULL.
func (a args) str(i int, def string) (string, error) {
	v := a.vals[i]
	if v.IsNull() {
		return def, nil
	}
	if v.Kind != entities.KindCharacter {
		return "", a.invalid(i, "must be a character string, got "+string(v.Kind))
	}
	if v.Len() == 0 {
		return def, nil
	}
	s, ok := v.AsString()
	if !ok {
		return "", a.invalid(i, "must not be NA")
	}
	return s, nil
}

// ints returns a numeric vector coerced to ints with its NA mask.
func (a args) ints(i int) ([]int, []bool, error) {
	v := a.vals[i]
	if v.IsNull() {
		return nil, nil, nil
	}
	out, na, ok := v.AsInts()
	if !ok {
		return nil, nil, a.invalid(i, "must be numeric, got "+string(v.Kind))
	}
	return out, na, nil
}

// int returns a numeric scalar; NULL, NA or an empty vector yield ok=false.
func (a args) int(i int) (int, bool, error) {
	out, na, err := a.ints(i)
	if err != nil || len(out) == 0 || na[0] {
		return 0, false, err
	}
	return out[0], true, nil
}

// bool returns a logical scalar, or def for NULL. NA is rejected.
func (a args) bool(i int, def bool) (bool, error) {
	v := a.vals[i]
	if v.IsNull() || v.Len() == 0 {
		return def, nil
	}
	if v.Kind != entities.KindLogical {
		return false, a.invalid(i, "must be a logical value, got "+string(v.Kind))
	}
	b, ok := v.AsBool()
	if !ok {
		return false, a.invalid(i, "must not be NA")
	}
	return b, nil
}
