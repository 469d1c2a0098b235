package coaching

import "time"

// DefaultPlanDurationWeeks — длительность программы при зачислении администратором.
const DefaultPlanDurationWeeks = 4

// NextMonday возвращает полночь ближайшего понедельника строго после now
// в часовом поясе now. Если now приходится на понедельник, результатом будет понедельник через неделю.
func NextMonday(now time.Time) time.Time {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	y, m, d := now.Date()
	return time.Date(y, m, d+days, 0, 0, 0, 0, now.Location())
}

// EnrollmentWindow считает даты начала и окончания программы длиной weeks недель.
// Даты считаются календарно, поэтому переход на летнее время не сдвигает полночь.
func EnrollmentWindow(now time.Time, weeks int) (start, end time.Time) {
	if weeks <= 0 {
		weeks = DefaultPlanDurationWeeks
	}
	start = NextMonday(now)
	y, m, d := start.Date()
	end = time.Date(y, m, d+7*weeks, 0, 0, 0, 0, start.Location())
	return start, end
}
