package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	"github.com/chatwright/chatwright/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const RUN_KEY string = "RUN"
const SESSION_KEY string = "SESSION"

var _ persistence.RunStore = new(redisRunStore)

type redisRunStore struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.FlowRun]
	ttl            time.Duration
}

// NewRunStore builds a run store over Redis. Runs are JSON encoded and
// expire after ttl of inactivity, which doubles as the idle-run
// auto-expiry policy.
func NewRunStore(conf Config, encoderDecoder util.EncoderDecoder[model.FlowRun], ttl time.Duration) *redisRunStore {
	return &redisRunStore{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
		ttl:            ttl,
	}
}

func NewRunStoreFromClient(client rd.UniversalClient, namespace string, partitionCount int, encoderDecoder util.EncoderDecoder[model.FlowRun], ttl time.Duration) *redisRunStore {
	return &redisRunStore{
		baseDao:        *newBaseDaoFromClient(client, namespace, partitionCount),
		encoderDecoder: encoderDecoder,
		ttl:            ttl,
	}
}

func (rs *redisRunStore) runKey(runId string) string {
	return rs.getNamespaceKey(RUN_KEY, fmt.Sprintf("%d", rs.getPartition(runId)), runId)
}

func (rs *redisRunStore) sessionKey(sessionId string) string {
	return rs.getNamespaceKey(SESSION_KEY, sessionId)
}

func (rs *redisRunStore) Load(ctx context.Context, runId string) (*model.FlowRun, error) {
	val, err := rs.redisClient.Get(ctx, rs.runKey(runId)).Result()
	if err == rd.Nil {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		logger.Error("error loading run", zap.String("runId", runId), zap.Error(err))
		return nil, err
	}
	return rs.encoderDecoder.Decode([]byte(val))
}

// Save commits the run only if the stored version still equals
// expectedVersion. A watched-key transaction makes the check-and-set
// atomic against concurrent steps for the same run.
func (rs *redisRunStore) Save(ctx context.Context, run *model.FlowRun, expectedVersion int64) error {
	key := rs.runKey(run.RunId)
	txf := func(tx *rd.Tx) error {
		val, err := tx.Get(ctx, key).Result()
		if err != nil && err != rd.Nil {
			return err
		}
		if err == rd.Nil {
			if expectedVersion != 0 {
				return persistence.ErrStaleVersion
			}
		} else {
			stored, derr := rs.encoderDecoder.Decode([]byte(val))
			if derr != nil {
				return derr
			}
			if stored.Version != expectedVersion {
				return persistence.ErrStaleVersion
			}
		}
		run.Version = expectedVersion + 1
		data, err := rs.encoderDecoder.Encode(*run)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe rd.Pipeliner) error {
			pipe.Set(ctx, key, data, rs.ttl)
			return nil
		})
		return err
	}
	err := rs.redisClient.Watch(ctx, txf, key)
	if err == rd.TxFailedErr {
		return persistence.ErrStaleVersion
	}
	return err
}

func (rs *redisRunStore) Delete(ctx context.Context, runId string) error {
	return rs.redisClient.Del(ctx, rs.runKey(runId)).Err()
}

func (rs *redisRunStore) ActiveRun(ctx context.Context, sessionId string) (string, error) {
	runId, err := rs.redisClient.Get(ctx, rs.sessionKey(sessionId)).Result()
	if err == rd.Nil {
		return "", persistence.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return runId, nil
}

func (rs *redisRunStore) SetActiveRun(ctx context.Context, sessionId string, runId string) (bool, error) {
	return rs.redisClient.SetNX(ctx, rs.sessionKey(sessionId), runId, rs.ttl).Result()
}

var clearActiveScript = rd.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ClearActiveRun releases the session only if it is still owned by the
// given run, so a racing new run is never evicted.
func (rs *redisRunStore) ClearActiveRun(ctx context.Context, sessionId string, runId string) error {
	return clearActiveScript.Run(ctx, rs.redisClient, []string{rs.sessionKey(sessionId)}, runId).Err()
}
