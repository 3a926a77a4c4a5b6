package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays LIFEBOARD_* environment variables on top of the file
// configuration. Unset or malformed values leave the field alone.
func (c *Config) applyEnv() {
	if v := getEnvInt("LIFEBOARD_PORT"); v > 0 {
		c.Server.Port = v
	}
	if v := os.Getenv("LIFEBOARD_DATA_DIR"); v != "" {
		c.Server.DataDir = v
	}
	if v := getEnvInt("LIFEBOARD_DEBOUNCE_MS"); v > 0 {
		c.Engine.DebounceMS = v
	}
	if v := os.Getenv("LIFEBOARD_API_BASE_URL"); v != "" {
		c.Engine.APIBaseURL = v
	}
	if v, ok := getEnvBool("LIFEBOARD_WORK_ON_WEEKENDS"); ok {
		c.Tasks.WorkOnWeekends = v
	}
	if v, ok := getEnvBool("LIFEBOARD_BACKUP_ENABLED"); ok {
		c.Backup.Enabled = v
	}
	if v := os.Getenv("LIFEBOARD_BACKUP_SCHEDULE"); v != "" {
		c.Backup.Schedule = v
	}
	if v := os.Getenv("LIFEBOARD_BACKUP_DIR"); v != "" {
		c.Backup.Dir = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}

func getEnvBool(key string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true, true
	case "0", "false", "no":
		return false, true
	default:
		return false, false
	}
}
