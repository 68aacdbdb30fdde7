package queue

import (
	"consult-booking/core/config"

	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used by services.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func RedisOpt(redisCfg config.RedisConfig, queueCfg config.QueueConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       queueCfg.RedisDB,
	}
}

func NewClient(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *asynq.Client {
	return asynq.NewClient(RedisOpt(redisCfg, queueCfg))
}

func NewServer(redisCfg config.RedisConfig, queueCfg config.QueueConfig) *asynq.Server {
	concurrency := queueCfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(
		RedisOpt(redisCfg, queueCfg),
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)
}
