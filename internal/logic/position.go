package logic

// FinishPosition returns the placement used for win and podium counting.
// With byClass off it is the overall place. Otherwise it is the number of
// competitors in the subject's class (subject included) minus those of the
// class placed ahead of the subject. Without class data it falls back to the
// overall place.
func FinishPosition(place int, byClass bool, class string, vehicles []Competitor) int {
	if !byClass {
		return place
	}
	total, ahead := 0, 0
	for _, v := range vehicles {
		if v.Class != class {
			continue
		}
		total++
		if v.Place < place {
			ahead++
		}
	}
	if total == 0 {
		return place
	}
	return total - ahead
}
