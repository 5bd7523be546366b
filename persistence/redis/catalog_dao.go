package redis

import (
	"context"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	"github.com/chatwright/chatwright/util"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"

var _ persistence.CatalogStore = new(redisCatalogStore)

type redisCatalogStore struct {
	baseDao
	encoderDecoder util.EncoderDecoder[model.FlowDefinition]
}

func NewCatalogStore(conf Config, encoderDecoder util.EncoderDecoder[model.FlowDefinition]) *redisCatalogStore {
	return &redisCatalogStore{
		baseDao:        *newBaseDao(conf),
		encoderDecoder: encoderDecoder,
	}
}

func NewCatalogStoreFromClient(client rd.UniversalClient, namespace string, encoderDecoder util.EncoderDecoder[model.FlowDefinition]) *redisCatalogStore {
	return &redisCatalogStore{
		baseDao:        *newBaseDaoFromClient(client, namespace, 1),
		encoderDecoder: encoderDecoder,
	}
}

func (cs *redisCatalogStore) SaveFlowDefinition(ctx context.Context, def model.FlowDefinition) error {
	data, err := cs.encoderDecoder.Encode(def)
	if err != nil {
		return err
	}
	key := cs.getNamespaceKey(FLOW_KEY)
	if err := cs.redisClient.HSet(ctx, key, def.Id, string(data)).Err(); err != nil {
		logger.Error("error saving flow definition", zap.String("flow", def.Id), zap.Error(err))
		return err
	}
	return nil
}

func (cs *redisCatalogStore) GetFlowDefinition(ctx context.Context, id string) (*model.FlowDefinition, error) {
	key := cs.getNamespaceKey(FLOW_KEY)
	val, err := cs.redisClient.HGet(ctx, key, id).Result()
	if err == rd.Nil {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cs.encoderDecoder.Decode([]byte(val))
}

func (cs *redisCatalogStore) ListFlowDefinitions(ctx context.Context) ([]model.FlowDefinition, error) {
	key := cs.getNamespaceKey(FLOW_KEY)
	vals, err := cs.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	defs := make([]model.FlowDefinition, 0, len(vals))
	for _, val := range vals {
		def, err := cs.encoderDecoder.Decode([]byte(val))
		if err != nil {
			return nil, err
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

func (cs *redisCatalogStore) DeleteFlowDefinition(ctx context.Context, id string) error {
	key := cs.getNamespaceKey(FLOW_KEY)
	return cs.redisClient.HDel(ctx, key, id).Err()
}
