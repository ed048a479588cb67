// Package velocity scores repeat-booking behavior over a bounded window of
// recent attempts. Velocity alone is capped below full risk: it raises the
// temperature, the aggregator decides.
package velocity

import (
	"fmt"
	"strings"
	"time"

	"stayguard/internal/models"
)

// MaxScore caps the velocity contribution.
const MaxScore = 50

const (
	hourWindow = time.Hour
	dayWindow  = 24 * time.Hour
)

// Result is the velocity contribution for one booking attempt.
type Result struct {
	Score int      `json:"score"`
	Flags []string `json:"flags"`
}

// Current identifies the attempt being scored.
type Current struct {
	FingerprintHash string
	IP              string
	Email           string
}

// Analyze partitions the recent attempts into one-hour and 24-hour windows
// and scores repeat activity from the same device, IP, and email domain.
func Analyze(cur Current, attempts []models.BookingAttempt, now time.Time) Result {
	var (
		fpHour, fpDay int
		ipHour        int
		domainDay     int
	)

	curEmail := strings.ToLower(strings.TrimSpace(cur.Email))
	curDomain := emailDomain(curEmail)

	for _, a := range attempts {
		age := now.Sub(a.CreatedAt)
		if age < 0 || age > dayWindow {
			continue
		}

		sameFP := cur.FingerprintHash != "" && a.FingerprintHash == cur.FingerprintHash
		if sameFP {
			fpDay++
			if age <= hourWindow {
				fpHour++
			}
		}

		if cur.IP != "" && a.IP == cur.IP && age <= hourWindow {
			ipHour++
		}

		email := strings.ToLower(strings.TrimSpace(a.Email))
		if curDomain != "" && emailDomain(email) == curDomain && email != curEmail {
			domainDay++
		}
	}

	var result Result

	if fpHour > 1 {
		result.Score += fpHour * 15
		result.Flags = append(result.Flags, fmt.Sprintf("%d_bookings_same_device_last_hour", fpHour))
	}
	if ipHour > 2 {
		result.Score += ipHour * 10
		result.Flags = append(result.Flags, fmt.Sprintf("%d_bookings_same_ip_last_hour", ipHour))
	}
	if fpDay > 3 {
		result.Score += fpDay * 5
		result.Flags = append(result.Flags, fmt.Sprintf("%d_bookings_same_device_last_day", fpDay))
	}
	if domainDay > 2 {
		result.Score += domainDay * 8
		result.Flags = append(result.Flags, "multiple_emails_same_domain")
	}

	if result.Score > MaxScore {
		result.Score = MaxScore
	}
	return result
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
