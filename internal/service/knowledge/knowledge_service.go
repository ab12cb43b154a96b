package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"chatbot_server/pkg/util/file"
	"chatbot_server/pkg/zlog"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var ErrInvalidExample = errors.New("invalid training example")

// Intent 一组关键词及其候选回复
type Intent struct {
	Tag       string   `json:"tag"`
	Patterns  []string `json:"patterns"`
	Responses []string `json:"responses"`
}

// Application 一个对话场景（客服、校园、招聘、个人助理…）
type Application struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Intents     []Intent `json:"intents"`
	Fallbacks   []string `json:"fallbacks"`
}

// Data chatbot_data.json 的完整结构
type Data struct {
	Applications map[string]*Application `json:"applications"`
}

type ApplicationStats struct {
	Intents   int `json:"intents"`
	Patterns  int `json:"patterns"`
	Responses int `json:"responses"`
	Fallbacks int `json:"fallbacks"`
}

type Stats struct {
	TotalApplications int                         `json:"total_applications"`
	TotalPatterns     int                         `json:"total_patterns"`
	TotalResponses    int                         `json:"total_responses"`
	Applications      map[string]ApplicationStats `json:"applications"`
}

// Store 知识库文件的内存副本，读多写少
type Store struct {
	mu      sync.RWMutex
	writeMu sync.Mutex // 串行化 AddExample 的修改与落盘
	path    string
	data    Data
}

func NewStore(path string) *Store {
	return &Store{
		path: path,
		data: Data{Applications: map[string]*Application{}},
	}
}

func (s *Store) Path() string {
	return s.path
}

// Load 从磁盘读取知识库
func (s *Store) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read knowledge file: %w", err)
	}
	data, err := Decode(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	zlog.Info("知识库加载完成", zap.String("path", s.path), zap.Int("applications", len(data.Applications)))
	return nil
}

// LoadOrSeed 数据文件不存在时先从模板复制一份再加载
func (s *Store) LoadOrSeed(template string) error {
	if !file.Exists(s.path) {
		if err := file.CopyFile(template, s.path); err != nil {
			return fmt.Errorf("seed knowledge file: %w", err)
		}
		zlog.Info("知识库文件不存在，已从模板创建", zap.String("template", template), zap.String("path", s.path))
	}
	return s.Load()
}

// Save 将当前知识库写回磁盘
func (s *Store) Save() error {
	s.mu.RLock()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	return file.WriteAtomic(s.path, raw)
}

// AddExample 为指定场景的 tag 增加一条关键词和回复并落盘；场景或 tag 不存在时自动创建
func (s *Store) AddExample(application, pattern, response, tag string) error {
	application = strings.TrimSpace(application)
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	response = strings.TrimSpace(response)
	tag = strings.TrimSpace(tag)
	if application == "" || pattern == "" || response == "" || tag == "" {
		return ErrInvalidExample
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	previous, existed := s.data.Applications[application]
	var backup *Application
	if existed {
		backup = lo.ToPtr(cloneApplication(*previous))
	}
	app := previous
	if !existed {
		app = &Application{Name: application}
		s.data.Applications[application] = app
	}

	idx := lo.IndexOf(lo.Map(app.Intents, func(intent Intent, _ int) string { return intent.Tag }), tag)
	if idx < 0 {
		app.Intents = append(app.Intents, Intent{Tag: tag})
		idx = len(app.Intents) - 1
	}
	intent := &app.Intents[idx]
	if !lo.Contains(intent.Patterns, pattern) {
		intent.Patterns = append(intent.Patterns, pattern)
	}
	if !lo.Contains(intent.Responses, response) {
		intent.Responses = append(intent.Responses, response)
	}
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		// 写盘失败时回滚内存，保持与文件一致
		s.mu.Lock()
		if existed {
			s.data.Applications[application] = backup
		} else {
			delete(s.data.Applications, application)
		}
		s.mu.Unlock()
		return fmt.Errorf("save knowledge file: %w", err)
	}
	zlog.Info("新增训练样本", zap.String("application", application), zap.String("tag", tag))
	return nil
}

// Application 返回场景的副本，调用方可以随意读取
func (s *Store) Application(name string) (Application, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.data.Applications[name]
	if !ok {
		return Application{}, false
	}
	return cloneApplication(*app), true
}

// Applications 按名称排序返回所有场景
func (s *Store) Applications() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := lo.Keys(s.data.Applications)
	sort.Strings(names)
	return names
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ComputeStats(s.data)
}

func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Validate(s.data)
}

// Decode 解析知识库 JSON
func Decode(raw []byte) (Data, error) {
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, err
	}
	if data.Applications == nil {
		data.Applications = map[string]*Application{}
	}
	return data, nil
}

func ComputeStats(data Data) Stats {
	stats := Stats{
		TotalApplications: len(data.Applications),
		Applications:      make(map[string]ApplicationStats, len(data.Applications)),
	}
	for name, app := range data.Applications {
		if app == nil {
			continue
		}
		appStats := ApplicationStats{
			Intents:   len(app.Intents),
			Fallbacks: len(app.Fallbacks),
		}
		for _, intent := range app.Intents {
			appStats.Patterns += len(intent.Patterns)
			appStats.Responses += len(intent.Responses)
		}
		stats.Applications[name] = appStats
		stats.TotalPatterns += appStats.Patterns
		stats.TotalResponses += appStats.Responses
	}
	return stats
}

// Validate 检查每个场景至少有一个 intent，且每个 intent 都有 tag、关键词和回复
func Validate(data Data) error {
	names := lo.Keys(data.Applications)
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		app := data.Applications[name]
		if app == nil || len(app.Intents) == 0 {
			errs = append(errs, fmt.Errorf("%s: no intents", name))
			continue
		}
		for i, intent := range app.Intents {
			if strings.TrimSpace(intent.Tag) == "" {
				errs = append(errs, fmt.Errorf("%s: intent #%d has no tag", name, i))
			}
			if len(intent.Patterns) == 0 {
				errs = append(errs, fmt.Errorf("%s/%s: no patterns", name, intent.Tag))
			}
			if len(intent.Responses) == 0 {
				errs = append(errs, fmt.Errorf("%s/%s: no responses", name, intent.Tag))
			}
		}
	}
	return errors.Join(errs...)
}

func cloneApplication(app Application) Application {
	out := Application{
		Name:        app.Name,
		Description: app.Description,
		Fallbacks:   append([]string(nil), app.Fallbacks...),
		Intents:     make([]Intent, len(app.Intents)),
	}
	for i, intent := range app.Intents {
		out.Intents[i] = Intent{
			Tag:       intent.Tag,
			Patterns:  append([]string(nil), intent.Patterns...),
			Responses: append([]string(nil), intent.Responses...),
		}
	}
	return out
}
