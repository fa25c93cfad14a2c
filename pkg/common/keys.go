package common

import "fmt"

var (
	// Index keys
	indexMigrationLock string = "%s_index_lock" // logical index name

	// Cache keys. The object type and id are joined with an underscore;
	// ids are numeric so the separator cannot collide.
	cacheObject string = "%s_%s" // objectType, objectId

	// Gateway keys
	gatewayInitLock string = "gateway:init:%s:lock" // name
)

var Keys = &redisKeys{}

type redisKeys struct{}

// Index keys
func (rk *redisKeys) IndexMigrationLock(indexName string) string {
	return fmt.Sprintf(indexMigrationLock, indexName)
}

// Cache keys
func (rk *redisKeys) CacheObject(objectType, objectId string) string {
	return fmt.Sprintf(cacheObject, objectType, objectId)
}

// Gateway keys
func (rk *redisKeys) GatewayInitLock(name string) string {
	return fmt.Sprintf(gatewayInitLock, name)
}
