package refresh

import "time"

// NYSE/NASDAQ regular session bounds in Eastern Time.
const (
	sessionOpenHour, sessionOpenMin   = 9, 30
	sessionCloseHour, sessionCloseMin = 16, 0
)

// easternTime returns the US market time zone, falling back to fixed EST
// when the zone database is unavailable.
func easternTime() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// usHolidays lists the full-day NYSE closures.
var usHolidays = map[string]bool{
	"2024-01-01": true, // New Year's Day
	"2024-01-15": true, // MLK Day
	"2024-02-19": true, // Presidents Day
	"2024-03-29": true, // Good Friday
	"2024-05-27": true, // Memorial Day
	"2024-06-19": true, // Juneteenth
	"2024-07-04": true, // Independence Day
	"2024-09-02": true, // Labor Day
	"2024-11-28": true, // Thanksgiving
	"2024-12-25": true, // Christmas

	"2025-01-01": true, // New Year's Day
	"2025-01-20": true, // MLK Day
	"2025-02-17": true, // Presidents Day
	"2025-04-18": true, // Good Friday
	"2025-05-26": true, // Memorial Day
	"2025-06-19": true, // Juneteenth
	"2025-07-04": true, // Independence Day
	"2025-09-01": true, // Labor Day
	"2025-11-27": true, // Thanksgiving
	"2025-12-25": true, // Christmas

	"2026-01-01": true, // New Year's Day
	"2026-01-19": true, // MLK Day
	"2026-02-16": true, // Presidents Day
	"2026-04-03": true, // Good Friday
	"2026-05-25": true, // Memorial Day
	"2026-06-19": true, // Juneteenth
	"2026-07-03": true, // Independence Day (observed)
	"2026-09-07": true, // Labor Day
	"2026-11-26": true, // Thanksgiving
	"2026-12-25": true, // Christmas
}

// marketOpen reports whether the US regular session is trading at t.
// Weekends and full-day exchange holidays count as closed.
func marketOpen(t time.Time) bool {
	et := t.In(easternTime())

	if wd := et.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	if usHolidays[et.Format("2006-01-02")] {
		return false
	}

	minutes := et.Hour()*60 + et.Minute()
	return minutes >= sessionOpenHour*60+sessionOpenMin &&
		minutes < sessionCloseHour*60+sessionCloseMin
}
