// Copyright (C) 2022 Michael J. Fromberger. All Rights Reserved.

package parley

import "expvar"

// sessionMetrics record session and establisher activity counters.
type sessionMetrics struct {
	frameRecv      expvar.Int
	frameSent      expvar.Int
	frameDropped   expvar.Int // frames received with an unknown kind
	bytesRecv      expvar.Int // payload bytes, excluding prefixes
	bytesSent      expvar.Int // payload bytes, excluding prefixes
	sessionStarted expvar.Int // receive loops started
	sessionActive  expvar.Int
	dialFailed     expvar.Int
	raceLost       expvar.Int // connections closed because another path won

	emap *expvar.Map
}

var metrics = newSessionMetrics()

func newSessionMetrics() *sessionMetrics {
	m := &sessionMetrics{emap: new(expvar.Map)}
	m.emap.Set("frames_received", &m.frameRecv)
	m.emap.Set("frames_sent", &m.frameSent)
	m.emap.Set("frames_dropped", &m.frameDropped)
	m.emap.Set("bytes_received", &m.bytesRecv)
	m.emap.Set("bytes_sent", &m.bytesSent)
	m.emap.Set("sessions_started", &m.sessionStarted)
	m.emap.Set("sessions_active", &m.sessionActive)
	m.emap.Set("dials_failed", &m.dialFailed)
	m.emap.Set("races_lost", &m.raceLost)
	return m
}

// Metrics returns the metrics map shared by all sessions and establishers in
// the process. It is safe for the caller to add entries to the map.
func Metrics() *expvar.Map { return metrics.emap }
