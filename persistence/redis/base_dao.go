package redis

import (
	"fmt"
	"strings"

	rd "github.com/redis/go-redis/v9"
	"github.com/spaolacci/murmur3"
)

type Config struct {
	Addrs          []string
	Namespace      string
	Password       string
	PartitionCount int
}

type baseDao struct {
	redisClient    rd.UniversalClient
	namespace      string
	partitionCount int
}

func newBaseDao(conf Config) *baseDao {
	redisClient := rd.NewUniversalClient(&rd.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
	})
	partitions := conf.PartitionCount
	if partitions <= 0 {
		partitions = 1
	}
	return &baseDao{
		redisClient:    redisClient,
		namespace:      conf.Namespace,
		partitionCount: partitions,
	}
}

func newBaseDaoFromClient(client rd.UniversalClient, namespace string, partitionCount int) *baseDao {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	return &baseDao{
		redisClient:    client,
		namespace:      namespace,
		partitionCount: partitionCount,
	}
}

func (bs *baseDao) getNamespaceKey(args ...string) string {
	return fmt.Sprintf("%s:%s", bs.namespace, strings.Join(args, ":"))
}

// getPartition spreads hot run keys across logical shards.
func (bs *baseDao) getPartition(id string) int {
	return int(murmur3.Sum32([]byte(id)) % uint32(bs.partitionCount))
}
