package parse

import (
	"regexp"
	"strconv"

	"github.com/stackhpc/perftest-operator/pkg/apis/perftest/v1alpha1"
)

// openFOAMTimeRE matches a GNU-time-style "real 0m1.234s" line, or the
// bare-seconds form "real 1.234s" some wrappers emit.
func openFOAMTimeRE(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^` + label + `\s+(?:(\d+)m)?([\d.]+)s`)
}

var (
	openFOAMRealRE = openFOAMTimeRE("real")
	openFOAMUserRE = openFOAMTimeRE("user")
	openFOAMSysRE  = openFOAMTimeRE("sys")
)

func matchSeconds(re *regexp.Regexp, log []byte) (float64, bool) {
	m := re.FindSubmatch(log)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(string(m[2]), 64)
	if err != nil {
		return 0, false
	}
	if len(m[1]) > 0 {
		minutes, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			return 0, false
		}
		seconds += minutes * 60
	}
	return seconds, true
}

// OpenFOAM parses an OpenFOAM solver log's GNU-time-style real/user/sys
// lines (spec §4.4 "openFOAM"). All three are required; a log carrying
// none of them hasn't produced a time block at all (parse error), while a
// log carrying one or two is still being written (incomplete).
func OpenFOAM(log []byte) (*v1alpha1.OpenFOAMResult, error) {
	real, realOK := matchSeconds(openFOAMRealRE, log)
	user, userOK := matchSeconds(openFOAMUserRE, log)
	sys, sysOK := matchSeconds(openFOAMSysRE, log)

	found := realOK || userOK || sysOK
	if !found {
		return nil, parseError("openFOAM", "no real/user/sys time lines found")
	}
	if !(realOK && userOK && sysOK) {
		return nil, incomplete("openFOAM", "real/user/sys time lines incomplete")
	}

	return &v1alpha1.OpenFOAMResult{RealSeconds: real, UserSeconds: user, SysSeconds: sys}, nil
}
