package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/vidmask/errors"
	"github.com/teranos/vidmask/logger"
)

// UserConfigPath returns ~/.vidmask/am.toml
func UserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine home directory")
	}
	return filepath.Join(home, ".vidmask", "am.toml"), nil
}

// SetUserValue writes one dotted key into the user config file, creating it
// if needed and keeping rotating backups. The resulting file must validate.
func SetUserValue(key, raw string) error {
	path, err := UserConfigPath()
	if err != nil {
		return err
	}
	return setValueInFile(path, key, raw)
}

func setValueInFile(path, key, raw string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return errors.NewInvalidRequestError("key %q must be <section>.<name>", key)
	}

	doc := map[string]interface{}{}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &doc); err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to read %s", path)
	}

	section, ok := doc[parts[0]].(map[string]interface{})
	if !ok {
		section = map[string]interface{}{}
	}
	section[parts[1]] = parseScalar(raw)
	doc[parts[0]] = section

	data, err := toml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Validate before touching disk.
	tmp, err := os.CreateTemp("", "am-*.toml")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write temp file")
	}
	tmp.Close()

	unknown, err := CheckUnknownKeys(tmp.Name())
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		return errors.NewInvalidRequestError("unknown config key %s", strings.Join(unknown, ", "))
	}
	cfg, err := LoadFromFile(tmp.Name())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), DefaultDirPermissions); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	if w := GetGlobalWatcher(); w != nil && w.Path() == path {
		w.MarkOwnWrite()
	}
	if err := os.WriteFile(path, data, DefaultFilePermissions); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	logger.AMInfow("Config value saved", "key", key, logger.FieldPath, path)
	return nil
}

// parseScalar turns CLI input into the TOML scalar it most likely means.
func parseScalar(raw string) interface{} {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	return raw
}

// createBackup rotates .back1 -> .back2 -> .back3 and copies the current file to .back1.
func createBackup(configPath string) error {
	content, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	back1, back2, back3 := configPath+".back1", configPath+".back2", configPath+".back3"
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old backup", logger.FieldPath, back3, logger.FieldError, err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}
	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}
	return nil
}
