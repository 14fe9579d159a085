package config

import (
	"os"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// lookupEnv reads TASKBOARD_<name>; blank values count as unset.
func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envString(name string, dst *string) {
	if v, ok := lookupEnv(name); ok {
		*dst = v
	}
}

func envLower(name string, dst *string) {
	if v, ok := lookupEnv(name); ok {
		*dst = strings.ToLower(v)
	}
}

func envInt(name string, dst *int) {
	v, ok := lookupEnv(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("env", envPrefix+name).Warn("ignoring non-numeric environment override")
		return
	}
	*dst = n
}

func envBool(name string, dst *bool) {
	v, ok := lookupEnv(name)
	if !ok {
		return
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	default:
		log.WithField("env", envPrefix+name).Warn("ignoring non-boolean environment override")
	}
}

// envList splits a comma separated override, dropping blanks.
func envList(name string, dst *[]string) {
	v, ok := lookupEnv(name)
	if !ok {
		return
	}
	out := make([]string, 0, strings.Count(v, ",")+1)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}
