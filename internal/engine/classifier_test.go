package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    Outcome
	}{
		{"plain success", 1, "预约成功", OutcomeSuccess},
		{"duplicate booking counts as success", 0, "不可重复预约", OutcomeSuccess},
		{"explicit reauth code", 2, "", OutcomeNeedReauth},
		{"token keyword in message", 0, "access_token无效", OutcomeNeedReauth},
		{"expired keyword", 0, "登录已过期，请重新登录", OutcomeNeedReauth},
		{"explicit window code", 3, "", OutcomeNotYetBookable},
		{"booking stopped phrase", 0, "预约已停止", OutcomeNotYetBookable},
		{"window opens later phrase", 0, "开始预约时间为06:00", OutcomeNotYetBookable},
		{"seat taken", 0, "该座位已被预约", OutcomeAlreadyBooked},
		{"seat occupied", 0, "座位已被占用", OutcomeAlreadyBooked},
		{"seat selected by other", 0, "座位已被选择", OutcomeAlreadyBooked},
		{"rate limit", 0, "访问频繁，请稍后再试", OutcomeRateLimited},
		{"rate limit beats success status", 1, "访问频繁", OutcomeRateLimited},
		{"rate limit beats reauth keyword", 0, "访问频繁，请重新登录", OutcomeRateLimited},
		{"empty failure", 0, "", OutcomeUnknownFailure},
		{"unrecognized message", 0, "系统繁忙", OutcomeUnknownFailure},
		{"unknown status code", 42, "something", OutcomeUnknownFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.status, tt.message))
		})
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "rate limited", OutcomeRateLimited.String())
	assert.Equal(t, "unknown failure", Outcome(99).String())
}
