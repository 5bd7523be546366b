package config

import "time"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig      RedisStorageConfig
	HttpPort         int
	StorageType      StorageType
	CatalogDir       string
	TelemetryFile    string
	PartitionCount   int
	RunTTL           time.Duration
	SessionLockTTL   time.Duration
	ExecutorTimeout  time.Duration
	ClassifierConfig ClassifierConfig
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	Password  string
}

// ClassifierConfig carries the per-tier confidence bars and timeouts.
// Tiers are ordered by trust; a tier that clears its bar wins even if
// a later tier would score higher.
type ClassifierConfig struct {
	PatternThreshold    float64
	ModelThreshold      float64
	GenerativeThreshold float64
	TierTimeout         time.Duration
}

func Default() Config {
	return Config{
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "chatwright",
		},
		HttpPort:        8080,
		StorageType:     STORAGE_TYPE_REDIS,
		PartitionCount:  16,
		RunTTL:          24 * time.Hour,
		SessionLockTTL:  10 * time.Second,
		ExecutorTimeout: 5 * time.Second,
		ClassifierConfig: ClassifierConfig{
			PatternThreshold:    0.8,
			ModelThreshold:      0.7,
			GenerativeThreshold: 0.5,
			TierTimeout:         3 * time.Second,
		},
	}
}
