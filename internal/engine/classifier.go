package engine

import (
	"regexp"
	"strings"
)

// Outcome is the semantic classification of one raw booking response.
type Outcome int

const (
	OutcomeUnknownFailure Outcome = iota
	OutcomeSuccess
	OutcomeAlreadyBooked
	OutcomeNeedReauth
	OutcomeNotYetBookable
	OutcomeRateLimited
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeAlreadyBooked:
		return "already booked"
	case OutcomeNeedReauth:
		return "need reauth"
	case OutcomeNotYetBookable:
		return "not yet bookable"
	case OutcomeRateLimited:
		return "rate limited"
	default:
		return "unknown failure"
	}
}

// Provider status codes on the booking endpoint.
const (
	statusFailure      = 0
	statusSuccess      = 1
	statusNeedReauth   = 2
	statusWindowClosed = 3
)

const (
	// Provider throttling phrase. Overrides everything else.
	rateLimitPhrase = "访问频繁"
	// "Cannot book the same slot twice": the seat is already ours, so the
	// desired end state is reached and the attempt counts as success.
	duplicateBookingPhrase = "不可重复预约"
)

// Message fragments the provider emits when the session is dead.
var reauthKeywords = []string{
	"重新登录", "access_token", "登录", "认证", "过期", "无效", "token",
}

// Seat grabbed by someone else between fetch and attempt.
var seatTakenPhrases = []string{"已被预约", "已被占用", "已被选择"}

// Booking ended for the day or not yet open.
var windowClosedPattern = regexp.MustCompile(`预约已停止|开始预约时间`)

// Classify maps a raw (status, message) booking response onto exactly one
// Outcome. It is total: any combination yields a value, never a panic.
// Rate limiting has absolute priority; the message text is authoritative
// over the status code for everything but the explicit codes.
func Classify(status int, message string) Outcome {
	switch {
	case strings.Contains(message, rateLimitPhrase):
		return OutcomeRateLimited
	case status == statusSuccess || strings.Contains(message, duplicateBookingPhrase):
		return OutcomeSuccess
	case status == statusNeedReauth || containsAny(message, reauthKeywords):
		return OutcomeNeedReauth
	case status == statusWindowClosed || windowClosedPattern.MatchString(message):
		return OutcomeNotYetBookable
	case containsAny(message, seatTakenPhrases):
		return OutcomeAlreadyBooked
	default:
		return OutcomeUnknownFailure
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
