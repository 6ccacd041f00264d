package grade

// AttendanceRate returns the percentage of attended classes, rounded to two decimals.
// No recorded class counts as full attendance.
func AttendanceRate(present, total int) float64 {
	if total <= 0 {
		return 100
	}
	if present < 0 {
		present = 0
	} else if present > total {
		present = total
	}
	return Round(float64(present) * 100 / float64(total))
}
