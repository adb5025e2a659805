package models

import (
	"context"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/sirupsen/logrus"
)

// SalesReportCachePrefix prefixes every cached sales and consumption report.
const SalesReportCachePrefix = "report:sales_consumption:"

// RemoveRedisPattern deletes every key matching pattern. Without redis it is
// a no-op.
func RemoveRedisPattern(ctx context.Context, pattern string) (int, error) {
	rdb := config.GetRedisDB()
	if rdb == nil {
		return 0, nil
	}
	var removed int
	iter := rdb.Scan(ctx, 0, pattern, 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := rdb.Del(ctx, batch...).Err(); err != nil {
				return removed, err
			}
			removed += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return removed, err
	}
	if len(batch) > 0 {
		if err := rdb.Del(ctx, batch...).Err(); err != nil {
			return removed, err
		}
		removed += len(batch)
	}
	return removed, nil
}

// InvalidateSalesReports drops cached reports after paid orders or the
// catalog they resolve against change.
// Failures only leave stale entries until their TTL, so they are logged.
func InvalidateSalesReports(ctx context.Context) {
	removed, err := RemoveRedisPattern(context.WithoutCancel(ctx), SalesReportCachePrefix+"*")
	if err != nil {
		config.LogError(config.GetLogger(), "redisCleaner.go", "InvalidateSalesReports", "RemoveRedisPattern", SalesReportCachePrefix, err)
		return
	}
	if removed > 0 {
		config.GetLogger().WithFields(logrus.Fields{
			"field":   "InvalidateSalesReports",
			"removed": removed,
		}).Debug("sales report cache cleared")
	}
}
