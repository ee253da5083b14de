// Package poll keeps the dashboard's source list fresh.
//
// The Controller ticks at a fixed base interval. While any source is running
// it refreshes the list and the stats of every running or stopping source on
// each tick; otherwise it refreshes the list once per idle interval. Fetched
// lists pass through a Cache that drops updates which would not change what
// is rendered.
package poll
