// Package config loads application configuration from a config file and environment variables.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Storage backends for the mapping snapshot.
const (
	StorageSQLite = "sqlite"
	StorageJSON   = "json"
)

// Config holds the application configuration.
type Config struct {
	GitHub  GitHubConfig
	Discord DiscordConfig

	Storage          string
	DBPath           string
	DataFile         string
	ListenAddr       string
	RegisterCommands bool
	LogLevel         string
	LogFormat        string
}

// GitHubConfig identifies the App installation and the repository issues are filed in.
type GitHubConfig struct {
	Owner          string
	Repo           string
	AppID          string
	AppKey         string
	InstallationID int64
	APIURL         string
}

// DiscordConfig identifies the bot, its guild and the tracked forum channel.
type DiscordConfig struct {
	Token           string
	GuildID         uint64
	ChannelID       uint64
	ReporterRoleIDs []uint64
}

// setting is a config key plus the name the original bot used for it, both
// in config.json and as an environment variable.
type setting struct {
	key    string
	legacy string
}

var (
	ghOwner          = setting{"github_owner", "GH_OWNER"}
	ghRepo           = setting{"github_repo", "GH_NAME"}
	ghAppKey         = setting{"github_app_key", "GH_APP_KEY"}
	ghAppID          = setting{"github_app_id", "GH_APP_ID"}
	ghInstallID      = setting{"github_installation_id", "GH_INSTALL_ID"}
	ghAPIURL         = setting{"github_api_url", ""}
	dcGuildID        = setting{"discord_guild_id", "DC_GUILD_ID"}
	dcChannelID      = setting{"discord_channel_id", "DC_CHANNEL_ID"}
	dcToken          = setting{"discord_token", "DC_TOKEN"}
	dcReporterRoles  = setting{"discord_reporter_role_ids", "DC_REPORTER_ROLE_IDS"}
	storage          = setting{"storage", ""}
	dbPath           = setting{"db_path", ""}
	dataFile         = setting{"data_file", ""}
	listenAddr       = setting{"listen_addr", ""}
	registerCommands = setting{"register_commands", "CREATE_COMMANDS"}
	logLevel         = setting{"log_level", ""}
	logFormat        = setting{"log_format", ""}
)

var allSettings = []setting{
	ghOwner, ghRepo, ghAppKey, ghAppID, ghInstallID, ghAPIURL,
	dcGuildID, dcChannelID, dcToken, dcReporterRoles,
	storage, dbPath, dataFile, listenAddr, registerCommands, logLevel, logFormat,
}

// EnvName returns the FORUMBRIDGE_ environment variable for a config key.
func EnvName(key string) string {
	return "FORUMBRIDGE_" + strings.ToUpper(key)
}

// Load reads configuration and validates it. configFile may be empty, in which
// case config.{json,yaml,yml,toml} is looked up in FORUMBRIDGE_DATA_DIR (default
// the working directory) and is optional. Environment variables override the
// file; both the FORUMBRIDGE_ names and the original bot's names are read.
// Every missing or malformed required value is reported in one error.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if err := v.BindEnv("data_dir", EnvName("data_dir")); err != nil {
		return nil, fmt.Errorf("bind data_dir: %w", err)
	}
	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		dataDir = "."
	}

	for _, s := range allSettings {
		names := []string{s.key, EnvName(s.key)}
		if s.legacy != "" {
			names = append(names, s.legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("bind %s: %w", s.key, err)
		}
	}

	v.SetDefault(storage.key, StorageSQLite)
	v.SetDefault(dbPath.key, filepath.Join(dataDir, "forumbridge.db"))
	v.SetDefault(dataFile.key, filepath.Join(dataDir, "data.json"))
	v.SetDefault(listenAddr.key, "127.0.0.1:8080")
	v.SetDefault(logLevel.key, "info")
	v.SetDefault(logFormat.key, "text")

	path := configFile
	if path == "" {
		path = findConfigFile(dataDir)
	}
	if path != "" {
		if err := readConfigFile(v, path); err != nil {
			return nil, err
		}
	}

	return parse(v)
}

// findConfigFile returns the first config.{json,yaml,yml,toml} in dir, or "".
func findConfigFile(dir string) string {
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		candidate := filepath.Join(dir, "config."+ext)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// readConfigFile loads path into v. JSON files are decoded with UseNumber so
// unquoted snowflake ids in the original bot's config.json keep every digit.
func readConfigFile(v *viper.Viper, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", path, err)
		}
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}

	if err := v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("merge config file %s: %w", path, err)
	}
	return nil
}

func parse(v *viper.Viper) (*Config, error) {
	var errs *multierror.Error

	cfg := &Config{
		GitHub: GitHubConfig{
			Owner:  lookupString(v, ghOwner),
			Repo:   lookupString(v, ghRepo),
			AppID:  lookupString(v, ghAppID),
			AppKey: lookupString(v, ghAppKey),
			APIURL: lookupString(v, ghAPIURL),
		},
		Discord: DiscordConfig{
			Token: lookupString(v, dcToken),
		},
		Storage:    strings.ToLower(lookupString(v, storage)),
		DBPath:     lookupString(v, dbPath),
		DataFile:   lookupString(v, dataFile),
		ListenAddr: lookupString(v, listenAddr),
		LogLevel:   strings.ToLower(lookupString(v, logLevel)),
		LogFormat:  strings.ToLower(lookupString(v, logFormat)),
	}

	for _, req := range []struct {
		s     setting
		value string
	}{
		{ghAppKey, cfg.GitHub.AppKey},
		{ghAppID, cfg.GitHub.AppID},
		{ghOwner, cfg.GitHub.Owner},
		{ghRepo, cfg.GitHub.Repo},
		{dcToken, cfg.Discord.Token},
	} {
		if req.value == "" {
			errs = multierror.Append(errs, missing(req.s))
		}
	}

	installID, err := parseID(lookup(v, ghInstallID))
	switch {
	case err != nil:
		errs = multierror.Append(errs, invalid(ghInstallID, err))
	case installID == 0:
		errs = multierror.Append(errs, missing(ghInstallID))
	case installID > math.MaxInt64:
		errs = multierror.Append(errs, invalid(ghInstallID, fmt.Errorf("id %d out of range", installID)))
	default:
		cfg.GitHub.InstallationID = int64(installID)
	}

	for _, id := range []struct {
		s   setting
		dst *uint64
	}{
		{dcGuildID, &cfg.Discord.GuildID},
		{dcChannelID, &cfg.Discord.ChannelID},
	} {
		parsed, err := parseID(lookup(v, id.s))
		switch {
		case err != nil:
			errs = multierror.Append(errs, invalid(id.s, err))
		case parsed == 0:
			errs = multierror.Append(errs, missing(id.s))
		default:
			*id.dst = parsed
		}
	}

	roles, err := parseIDList(lookup(v, dcReporterRoles))
	switch {
	case err != nil:
		errs = multierror.Append(errs, invalid(dcReporterRoles, err))
	case len(roles) == 0:
		errs = multierror.Append(errs, missing(dcReporterRoles))
	default:
		cfg.Discord.ReporterRoleIDs = roles
	}

	register, err := parseBool(lookup(v, registerCommands))
	if err != nil {
		errs = multierror.Append(errs, invalid(registerCommands, err))
	}
	cfg.RegisterCommands = register

	if cfg.Storage != StorageSQLite && cfg.Storage != StorageJSON {
		errs = multierror.Append(errs, fmt.Errorf("%s must be %q or %q, got %q", storage.key, StorageSQLite, StorageJSON, cfg.Storage))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("%s must be one of debug, info, warn, error, got %q", logLevel.key, cfg.LogLevel))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = multierror.Append(errs, fmt.Errorf("%s must be text or json, got %q", logFormat.key, cfg.LogFormat))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// lookup returns the value for s, preferring the current key over the legacy
// one when a config file carries both. Defaults apply last.
func lookup(v *viper.Viper, s setting) any {
	if v.IsSet(s.key) {
		return v.Get(s.key)
	}
	if s.legacy != "" && v.IsSet(s.legacy) {
		return v.Get(s.legacy)
	}
	return v.Get(s.key)
}

func lookupString(v *viper.Viper, s setting) string {
	val := lookup(v, s)
	if val == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(val))
}

func missing(s setting) error {
	if s.legacy == "" {
		return fmt.Errorf("%s is empty or missing (set it in the config file or %s)", s.key, EnvName(s.key))
	}
	return fmt.Errorf("%s is empty or missing (set it in the config file, %s or %s)", s.key, EnvName(s.key), s.legacy)
}

func invalid(s setting, err error) error {
	return fmt.Errorf("%s: %w", s.key, err)
}

// maxExactFloat is the largest integer a float64 holds without rounding.
const maxExactFloat = 1 << 53

// parseID accepts a Discord snowflake or GitHub id as a string or a number.
// Numbers decoded as float64 lose precision above 2^53, so such values are
// rejected instead of silently rounded.
func parseID(val any) (uint64, error) {
	switch t := val.(type) {
	case nil:
		return 0, nil
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return 0, nil
		}
		id, err := strconv.ParseUint(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid id %q", t)
		}
		return id, nil
	case int:
		if t < 0 {
			return 0, fmt.Errorf("invalid id %d", t)
		}
		return uint64(t), nil
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("invalid id %d", t)
		}
		return uint64(t), nil
	case uint64:
		return t, nil
	case json.Number:
		return parseID(t.String())
	case float64:
		if t < 0 || t != math.Trunc(t) {
			return 0, fmt.Errorf("invalid id %v", t)
		}
		if t > maxExactFloat {
			return 0, fmt.Errorf("id %v is too large for a JSON number, quote it as a string", t)
		}
		return uint64(t), nil
	default:
		return 0, fmt.Errorf("invalid id of type %T", val)
	}
}

// parseIDList accepts a comma separated string or a list of ids.
func parseIDList(val any) ([]uint64, error) {
	var items []any
	switch t := val.(type) {
	case nil:
		return nil, nil
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	default:
		items = []any{t}
	}

	ids := make([]uint64, 0, len(items))
	for _, item := range items {
		id, err := parseID(item)
		if err != nil {
			return nil, err
		}
		if id == 0 {
			return nil, errors.New("role id must not be zero")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseBool(val any) (bool, error) {
	switch t := val.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return false, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, fmt.Errorf("invalid boolean %q", t)
		}
		return b, nil
	default:
		return false, fmt.Errorf("invalid boolean of type %T", val)
	}
}
