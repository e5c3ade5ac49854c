package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// OwnerCompletionsChannel returns the PubSub channel notified whenever one of
// the owner's completion records is written.
func (r *CacheKeyStruct) OwnerCompletionsChannel(ownerID string) string {
	return fmt.Sprintf("owner:%s:completions", ownerID)
}

// OwnerFeesChannel returns the PubSub channel notified whenever a fee period
// owned by ownerID changes (plan saved or payment recorded).
func (r *CacheKeyStruct) OwnerFeesChannel(ownerID string) string {
	return fmt.Sprintf("owner:%s:fees", ownerID)
}

// OwnerClassesChannel returns the PubSub channel notified on class registry writes.
func (r *CacheKeyStruct) OwnerClassesChannel(ownerID string) string {
	return fmt.Sprintf("owner:%s:classes", ownerID)
}

var CacheKey = NewCacheKeyStruct()
