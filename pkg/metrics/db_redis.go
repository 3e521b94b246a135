package metrics

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	DbPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "app_db_pool_open",
		Help: "Current open DB connections",
	})
	DbPoolIdle      = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_idle"})
	DbPoolInuse     = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_inuse"})
	DbPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_db_pool_wait_count"})

	RedisPoolOpen      = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_open"})
	RedisPoolIdle      = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_idle"})
	RedisPoolTimeouts  = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_timeouts"})
	RedisPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{Name: "app_redis_pool_wait_count"})
)

// WatchPools 定时采集连接池状态，ctx 取消后退出；rdb 可以为 nil
func WatchPools(ctx context.Context, db *sql.DB, rdb *redis.Client, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if db != nil {
				st := db.Stats()
				DbPoolOpen.Set(float64(st.OpenConnections))
				DbPoolIdle.Set(float64(st.Idle))
				DbPoolInuse.Set(float64(st.InUse))
				DbPoolWaitCount.Set(float64(st.WaitCount))
			}
			if rdb != nil {
				st := rdb.PoolStats()
				RedisPoolOpen.Set(float64(st.TotalConns))
				RedisPoolIdle.Set(float64(st.IdleConns))
				RedisPoolTimeouts.Set(float64(st.Timeouts))
				RedisPoolWaitCount.Set(float64(st.WaitCount))
			}
		}
	}
}
