package sources

import "time"

// versionWindowDays is how far back the spoofed client build date may reach.
const versionWindowDays = 30

// GenerateRandomClientVersion returns "2.YYYYMMDD.00.00" for one of the last
// 30 calendar days (today included), picked with intN.
func GenerateRandomClientVersion(now time.Time, intN func(int) int) string {
	daysAgo := intN(versionWindowDays)
	d := now.AddDate(0, 0, -daysAgo)
	return "2." + d.Format("20060102") + ".00.00"
}
