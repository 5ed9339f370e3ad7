package instance

import "github.com/angelmondragon/tradelink-backend/pkg/env"

// ID names the running process in logs and lock values. The first non-empty of
// TRADELINK_INSTANCE_ID, DYNO or HOSTNAME wins.
func ID() string {
	return env.First("local", "TRADELINK_INSTANCE_ID", "DYNO", "HOSTNAME")
}
