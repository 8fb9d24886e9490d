// Package sessionid generates a per-socket identifier for log
// correlation across a subscriber's reconnect attempts (SPEC_FULL.md
// §11: "tags each reconnect attempt for log correlation").
//
// Adapted from the teacher's uuid package (m-lab/tcp-info uuid/uuid.go):
// it keeps the hostname+boot-time prefix idiom (a cheap, globally unique
// per-boot namespace) but drops the SO_COOKIE/*net.TCPConn machinery,
// since simterm's subscriber sockets are plain TCP client connections
// with no netlink-visible cookie to query -- a monotonic per-process
// sequence number takes the cookie's place as the per-socket
// discriminator.
package sessionid

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	cachedPrefix string
	seq          uint64
)

func timeToUnix(t time.Time) int64 {
	return int64(t.Sub(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)).Seconds())
}

// getBoottimeWithRaceCondition has a race condition between the reading
// of /proc/uptime and the call to time.Now(). If, between those two
// syscalls, we cross a second-granularity time boundary, the result
// will be off by one; callers should call it until it returns the same
// answer twice.
func getBoottimeWithRaceCondition() (int64, error) {
	procuptime, err := ioutil.ReadFile("/proc/uptime")
	if err != nil {
		return -1, err
	}
	times := strings.Split(string(procuptime), " ")
	if len(times) != 2 {
		return -1, fmt.Errorf("sessionid: could not split /proc/uptime into two parts")
	}
	uptime, err := strconv.ParseFloat(times[0], 64)
	if err != nil {
		return -1, fmt.Errorf("sessionid: could not parse /proc/uptime into a float")
	}
	return timeToUnix(time.Now().Add(time.Duration(-1 * uptime * float64(time.Second)))), nil
}

func getBoottime() (int64, error) {
	var prev, curr int64
	curr, err := getBoottimeWithRaceCondition()
	if err != nil {
		return curr, err
	}
	for prev != curr {
		prev = curr
		curr, err = getBoottimeWithRaceCondition()
		if err != nil {
			return curr, err
		}
	}
	return curr, nil
}

// prefix returns a string identifying this process's hostname and boot
// time, cached for the life of the process.
func prefix() string {
	if cachedPrefix != "" {
		return cachedPrefix
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}
	boottime, err := getBoottime()
	if err != nil {
		boottime = 0
	}
	cachedPrefix = fmt.Sprintf("%s_%d", hostname, boottime)
	return cachedPrefix
}

// Next returns a fresh, process-unique session identifier suitable for
// tagging one subscriber connection attempt in log output.
func Next() string {
	n := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("%s_%X", prefix(), n)
}
