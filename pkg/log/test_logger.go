// Copyright (C) 2025 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import "sync"

// TestLogger keeps every message per level so unit tests can check them.
// Every call is also passed on to Logger, so Panic panics and Fatal exits
// after the message is recorded.
type TestLogger struct {
	Logger   *DefaultLogger
	mu       sync.Mutex
	Messages map[string][]string
	Fields   map[string][]Fields
	Level    LogLevel
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		Logger:   NewDefaultLogger(),
		Messages: make(map[string][]string),
		Fields:   make(map[string][]Fields),
		Level:    DebugLevel,
	}
}

func (m *TestLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = make(map[string][]string)
	m.Fields = make(map[string][]Fields)
}

func (m *TestLogger) record(level LogLevel, msg string, fields Fields) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if level > m.Level {
		return
	}
	key := level.String()
	m.Messages[key] = append(m.Messages[key], msg)
	m.Fields[key] = append(m.Fields[key], fields)
}

// Count returns how many messages were recorded at the given level.
func (m *TestLogger) Count(level LogLevel) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages[level.String()])
}

func (m *TestLogger) Panic(msg string, fields Fields) {
	m.record(PanicLevel, msg, fields)
	m.Logger.Panic(msg, fields)
}

func (m *TestLogger) Fatal(msg string, fields Fields) {
	m.record(FatalLevel, msg, fields)
	m.Logger.Fatal(msg, fields)
}

func (m *TestLogger) Error(msg string, fields Fields) {
	m.record(ErrorLevel, msg, fields)
	m.Logger.Error(msg, fields)
}

func (m *TestLogger) Warn(msg string, fields Fields) {
	m.record(WarnLevel, msg, fields)
	m.Logger.Warn(msg, fields)
}

func (m *TestLogger) Info(msg string, fields Fields) {
	m.record(InfoLevel, msg, fields)
	m.Logger.Info(msg, fields)
}

func (m *TestLogger) Debug(msg string, fields Fields) {
	m.record(DebugLevel, msg, fields)
	m.Logger.Debug(msg, fields)
}

func (m *TestLogger) SetLevel(level LogLevel) {
	m.Logger.SetLevel(level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Level = level
}

func (m *TestLogger) GetLevel() LogLevel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Level
}
