package arrays

func Map[InputType, OutputType any](input []InputType, f func(InputType) OutputType) []OutputType {
	result := make([]OutputType, len(input))
	for i, v := range input {
		result[i] = f(v)
	}
	return result
}

func Filter[ArrayType any](input []ArrayType, f func(ArrayType) bool) []ArrayType {
	result := []ArrayType{}

	for _, v := range input {
		if f(v) {
			result = append(result, v)
		}
	}
	return result
}

// Unique drops repeated values, keeping the first occurrence of each.
func Unique[ArrayType comparable](input []ArrayType) []ArrayType {
	seen := make(map[ArrayType]struct{}, len(input))
	return Filter(input, func(v ArrayType) bool {
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
		return true
	})
}
