package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrAborted возвращается, когда оператор ничего не выбрал или не подтвердил удаление
var ErrAborted = errors.New("aborted by user")

// ParseSelection разбирает выбор вида "all" или "1,3,5-8" для списка из n постов.
// Номера начинаются с 1; возвращаются индексы с нуля в порядке ввода без повторов.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrAborted
	}

	if strings.EqualFold(input, "all") {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}

	seen := make(map[int]struct{})
	var picked []int
	add := func(num int) error {
		if num < 1 || num > n {
			return fmt.Errorf("%d is out of range 1-%d", num, n)
		}
		if _, dup := seen[num]; !dup {
			seen[num] = struct{}{}
			picked = append(picked, num-1)
		}
		return nil
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			num, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid selection %q", part)
			}
			if err := add(num); err != nil {
				return nil, err
			}
			continue
		}

		start, errStart := strconv.Atoi(strings.TrimSpace(lo))
		end, errEnd := strconv.Atoi(strings.TrimSpace(hi))
		if errStart != nil || errEnd != nil || start > end {
			return nil, fmt.Errorf("invalid range %q", part)
		}
		for num := start; num <= end; num++ {
			if err := add(num); err != nil {
				return nil, err
			}
		}
	}

	if len(picked) == 0 {
		return nil, ErrAborted
	}

	return picked, nil
}
