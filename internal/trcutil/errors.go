package trcutil

import "strings"

// FlattenErrors converts errors to strings, skipping nil errors.
func FlattenErrors(errs ...error) []string {
	if len(errs) <= 0 {
		return nil
	}
	strs := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			strs = append(strs, err.Error())
		}
	}
	return strs
}

// JoinErrors flattens errs and joins them with "; ".
func JoinErrors(errs ...error) string {
	return strings.Join(FlattenErrors(errs...), "; ")
}
