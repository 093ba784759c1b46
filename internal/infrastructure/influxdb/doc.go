// Package influxdb records request and authentication statistics in
// InfluxDB through the official influxdb-client-go v2 library.
//
// Two measurements are written:
//   - http_requests: one point per handled request, tagged by method, route
//     pattern, status class and auth strategy, with duration and status fields
//   - auth_events: login, refresh, logout and signup outcomes
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteRequestStat(influxdb.RequestStat{Method: "GET", Route: "/users/me", Status: 200})
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write failures are delivered to the callback
// registered with SetOnError. A nil *Client accepts every write as a no-op,
// so callers do not need to branch on whether InfluxDB is enabled.
package influxdb
