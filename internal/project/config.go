package project

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/pelletier/go-toml/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	defaultMainSources = "src/main/kawa"
	defaultTestSources = "src/test/kawa"
	defaultMainOutput  = "build/main"
	defaultTestOutput  = "build/test"
)

type Config struct {
	Package  PackageSection  `toml:"package"`
	Sources  SourcesSection  `toml:"sources"`
	Output   OutputSection   `toml:"output"`
	Compiler CompilerSection `toml:"compiler"`
}

// PackageSection defines the [package] section
type PackageSection struct {
	Name        string   `toml:"name"`
	Description string   `toml:"description"`
	Authors     []string `toml:"authors"`
	Build       string   `toml:"build"`
}

// SourcesSection defines the [sources(.*)] section
type SourcesSection struct {
	Main      []string `toml:"main"`
	Test      []string `toml:"test"`
	Files     []string `toml:"files"`
	TestFiles []string `toml:"test-files"`
	Suffixes  []string `toml:"suffixes"`
	Exclude   []string `toml:"exclude"`
}

// OutputSection defines the [output(.*)] section
type OutputSection struct {
	Main string `toml:"main"`
	Test string `toml:"test"`
}

// CompilerSection defines the [compiler(.*)] section
type CompilerSection struct {
	Driver      string   `toml:"driver"`
	Path        string   `toml:"path"`
	Args        []string `toml:"args"`
	Classpath   string   `toml:"classpath"`
	Incremental bool     `toml:"incremental"`
}

// applyDefaults fills in whatever the file left out
func (c *Config) applyDefaults(dir string) {
	if c.Package.Name == "" {
		c.Package.Name = filepath.Base(dir)
	}
	if c.Sources.Main == nil {
		c.Sources.Main = []string{defaultMainSources}
	}
	if c.Sources.Test == nil {
		c.Sources.Test = []string{defaultTestSources}
	}
	if c.Output.Main == "" {
		c.Output.Main = defaultMainOutput
	}
	if c.Output.Test == "" {
		c.Output.Test = defaultTestOutput
	}
	if c.Compiler.Driver == "" {
		c.Compiler.Driver = "kawa"
	}
}

// mergeStructs merges the fields of the src struct into the dst struct.
// Only fields whose toml key is in present are touched: slices are
// appended, everything else is overridden, zero values included.
func mergeStructs(dst, src any, present map[string]any) error {
	dstVal := reflect.ValueOf(dst)
	if dstVal.Kind() != reflect.Pointer || dstVal.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("dst must be a pointer to a struct")
	}

	dstElem := dstVal.Elem()
	srcVal := reflect.ValueOf(src)

	if srcVal.Kind() == reflect.Pointer {
		srcVal = srcVal.Elem()
	}

	if srcVal.Kind() != reflect.Struct {
		return fmt.Errorf("src must be a struct or a pointer to a struct")
	}

	if dstElem.Type() != srcVal.Type() {
		return fmt.Errorf("dst and src must be of the same struct type")
	}

	for i := range srcVal.NumField() {
		srcField := srcVal.Field(i)
		dstField := dstElem.Field(i)

		if !dstField.CanSet() {
			continue
		}
		if _, ok := present[tomlKey(srcVal.Type().Field(i))]; !ok {
			continue
		}

		if dstField.Kind() == reflect.Slice {
			if !srcField.IsNil() {
				dstField.Set(reflect.AppendSlice(dstField, srcField))
			}
			continue
		}
		dstField.Set(srcField)
	}

	return nil
}

func tomlKey(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func mustMarshal(v any) string {
	b, err := toml.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// unmarshalSection is a helper to parse sections without conditional logic
func unmarshalSection(rawCfg map[string]any, name string, dst any) error {
	if data, ok := rawCfg[name]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(data)), dst); err != nil {
			return fmt.Errorf("failed to parse [%s] section: %w", name, err)
		}
	}
	return nil
}

// unmarshalConditionalSection parses a section whose sub-tables may be
// keyed by an expression; those are merged in when it evaluates to true
func unmarshalConditionalSection[T any](rawCfg map[string]any, name string, dst *T, env ConfigEnv) error {
	sectionData, ok := rawCfg[name]
	if !ok {
		return nil
	}

	sectionMap, ok := sectionData.(map[string]any)
	if !ok {
		return fmt.Errorf("invalid [%s] section format: expected a table", name)
	}

	baseFields := make(map[string]any)
	conditionalFields := make(map[string]map[string]any)

	for key, val := range sectionMap {
		if subMap, ok := val.(map[string]any); ok {
			if _, err := expr.Compile(key, expr.Env(env)); err == nil {
				conditionalFields[key] = subMap
				continue
			}
		}
		baseFields[key] = val
	}

	if len(baseFields) > 0 {
		if err := toml.Unmarshal([]byte(mustMarshal(baseFields)), dst); err != nil {
			return fmt.Errorf("failed to parse base [%s] section: %w", name, err)
		}
	}

	for expression, condMap := range conditionalFields {
		matched, err := evalBool(expression, env)
		if err != nil {
			return fmt.Errorf("[%s.%q]: %w", name, expression, err)
		}
		if !matched {
			continue
		}

		var condSection T
		if err := toml.Unmarshal([]byte(mustMarshal(condMap)), &condSection); err != nil {
			return fmt.Errorf("failed to parse conditional section [%s.%q]: %w", name, expression, err)
		}
		if err := mergeStructs(dst, condSection, condMap); err != nil {
			return fmt.Errorf("failed to merge conditional section [%s.%q]: %w", name, expression, err)
		}
	}

	return nil
}

func evalBool(expression string, env ConfigEnv) (bool, error) {
	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return false, fmt.Errorf("failed to compile expression: %w", err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to run expression: %w", err)
	}
	matched, ok := result.(bool)
	return ok && matched, nil
}

var exprRegex = regexp.MustCompile(`\{\{(.+?)\}\}`)

// evaluateString finds and evaluates all {{...}} expressions in a string
func evaluateString(s string, env ConfigEnv) (string, error) {
	matches := exprRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	lastIndex := 0

	for _, m := range matches {
		sb.WriteString(s[lastIndex:m[0]])

		expression := strings.TrimSpace(s[m[2]:m[3]])
		program, err := expr.Compile(expression, expr.Env(env))
		if err != nil {
			return "", fmt.Errorf("failed to compile expression %q: %w", expression, err)
		}
		result, err := expr.Run(program, env)
		if err != nil {
			return "", fmt.Errorf("failed to run expression %q: %w", expression, err)
		}

		fmt.Fprintf(&sb, "%v", result)
		lastIndex = m[1]
	}

	sb.WriteString(s[lastIndex:])
	return sb.String(), nil
}

// processExpressions recursively walks the parsed TOML data and evaluates expressions in strings
func processExpressions(data any, env ConfigEnv) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		for key, val := range v {
			processedVal, err := processExpressions(val, env)
			if err != nil {
				return nil, err
			}
			v[key] = processedVal
		}
		return v, nil
	case []any:
		for i, item := range v {
			processedItem, err := processExpressions(item, env)
			if err != nil {
				return nil, err
			}
			v[i] = processedItem
		}
		return v, nil
	case string:
		return evaluateString(v, env)
	default:
		return data, nil
	}
}

// ParseConfig reads a Kompile.toml. Defaults are not applied.
func ParseConfig(rdr io.Reader, env ConfigEnv) (*Config, error) {
	var rawConfig map[string]any
	dec := toml.NewDecoder(rdr)
	if err := dec.Decode(&rawConfig); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			return nil, errors.New(derr.String())
		}
		return nil, err
	}

	processedConfig, err := processExpressions(rawConfig, env)
	if err != nil {
		return nil, fmt.Errorf("error processing expressions in config: %w", err)
	}
	rawConfig = processedConfig.(map[string]any)

	cfg := new(Config)
	if err := unmarshalSection(rawConfig, "package", &cfg.Package); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "sources", &cfg.Sources, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "output", &cfg.Output, env); err != nil {
		return nil, err
	}
	if err := unmarshalConditionalSection(rawConfig, "compiler", &cfg.Compiler, env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ParseConfigFromFile parses a config file from a filepath
func ParseConfigFromFile(path string, env ConfigEnv) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ParseConfig(bufio.NewReader(f), env)
}

//
// expr-lang helpers
//

// RunBuildScript runs [package] build, which has to return true.
func (cfg Config) RunBuildScript(env ConfigEnv) error {
	if cfg.Package.Build == "" {
		return nil
	}

	program, err := expr.Compile(cfg.Package.Build, expr.Env(env))
	if err != nil {
		return fmt.Errorf("failed to compile build script for package %q: %w", cfg.Package.Name, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return fmt.Errorf("failed to run build script for package %q: %w", cfg.Package.Name, err)
	}

	if result, ok := result.(bool); !ok || !result {
		return fmt.Errorf("build script for package %q returned false\n%s", cfg.Package.Name, cfg.Package.Build)
	}

	return nil
}

type ConfigEnv struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

func NewConfigEnv(basedir string) ConfigEnv {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			environ[k] = v
		}
	}

	return ConfigEnv{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// resolve keeps script file access inside the project directory
func (env ConfigEnv) resolve(path string) string {
	fullPath := filepath.Join(env.basedir, path)
	rel, err := filepath.Rel(env.basedir, fullPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		panic(fmt.Sprintf("path %q is outside of project directory %q", path, env.basedir))
	}
	return fullPath
}

// Patch applies a diff-match-patch text patch to a project file and
// reports whether any hunk applied.
func (env ConfigEnv) Patch(path, patchText string) bool {
	fullPath := env.resolve(path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		panic(err)
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		panic(err)
	}
	patchedText, results := dmp.PatchApply(patches, string(data))
	applied := false
	for _, ok := range results {
		applied = applied || ok
	}
	if !applied {
		return false // nothing to write
	}

	if err := os.WriteFile(fullPath, []byte(patchedText), 0o644); err != nil {
		panic(err)
	}
	return true
}

func (env ConfigEnv) ReadFile(path string) string {
	data, err := os.ReadFile(env.resolve(path))
	if err != nil {
		panic(err)
	}
	return string(data)
}
