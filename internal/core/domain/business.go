package domain

import "fmt"

var businessNumberWeights = [9]int{1, 3, 7, 1, 3, 7, 1, 3, 5}

// NormalizeBusinessNumber returns the xxx-xx-xxxxx form of a 10 digit
// business registration number.
func NormalizeBusinessNumber(s string) (string, error) {
	d := DigitsOnly(s)
	if len(d) != 10 {
		return "", Invalid("business_number", "사업자등록번호는 10자리 숫자여야 합니다")
	}
	return fmt.Sprintf("%s-%s-%s", d[:3], d[3:5], d[5:]), nil
}

// ValidBusinessNumberChecksum checks the trailing check digit of a 10 digit number.
func ValidBusinessNumberChecksum(digits string) bool {
	if len(digits) != 10 {
		return false
	}
	var d [10]int
	for i, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
		d[i] = int(r - '0')
	}

	total := 0
	for i, w := range businessNumberWeights {
		total += d[i] * w
	}
	total += d[8] * 5 / 10

	return (10-total%10)%10 == d[9]
}

type BusinessStatus string

const (
	BusinessActive    BusinessStatus = "01"
	BusinessSuspended BusinessStatus = "02"
	BusinessClosed    BusinessStatus = "03"
)

type BusinessVerification struct {
	IsValid        bool
	BusinessNumber string
	Status         string
	StatusCode     string
	Message        string
}
