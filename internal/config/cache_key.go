package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamQuestionSnapshotKey returns the cache key for the frozen question set
// (answer key included) used to grade an exam
func (r *CacheKeyStruct) ExamQuestionSnapshotKey(examID string) string {
	return fmt.Sprintf("exam:%s:question_snapshot", examID)
}

// ExamEventsChannel returns the pub/sub channel carrying lifecycle events of an exam
func (r *CacheKeyStruct) ExamEventsChannel(examID string) string {
	return fmt.Sprintf("exam:%s:events", examID)
}

var CacheKey = NewCacheKeyStruct()
