// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package entity

import "encoding/json"

// Well-known object ids of the tenant skeleton.
const (
	IndexObjectID  = "entity_index"
	RosterObjectID = "students"
	TasksObjectID  = "tasks"
)

// Workspace is the root entity of a tenant. Its id equals the tenant
// id.
type Workspace struct {
	ID          string `json:"id"`
	Tenant      string `json:"tenant"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (w Workspace) Kind() string     { return string(KindWorkspace) }
func (w Workspace) ObjectID() string { return w.ID }
func (w Workspace) TenantID() string { return w.Tenant }

// Question is one item of a quiz or survey.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices,omitempty"`
	// Answer is the index of the correct choice. Surveys leave it
	// unset.
	Answer *int `json:"answer,omitempty"`
	Points int  `json:"points,omitempty"`
}

type Quiz struct {
	ID        string     `json:"id"`
	Tenant    string     `json:"tenant"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

func (q Quiz) Kind() string     { return string(KindQuiz) }
func (q Quiz) ObjectID() string { return q.ID }
func (q Quiz) TenantID() string { return q.Tenant }

type Survey struct {
	ID        string     `json:"id"`
	Tenant    string     `json:"tenant"`
	Title     string     `json:"title"`
	Anonymous bool       `json:"anonymous,omitempty"`
	Questions []Question `json:"questions"`
}

func (s Survey) Kind() string     { return string(KindSurvey) }
func (s Survey) ObjectID() string { return s.ID }
func (s Survey) TenantID() string { return s.Tenant }

// QuizRecord is one student's completed attempt at a quiz.
type QuizRecord struct {
	ID        string  `json:"id"`
	Tenant    string  `json:"tenant"`
	QuizID    string  `json:"quiz_id"`
	StudentID string  `json:"student_id"`
	Answers   []int   `json:"answers"`
	Score     float64 `json:"score"`
	// Scans lists asset file names of the scanned answer sheets.
	Scans []string `json:"scans,omitempty"`
}

func (r QuizRecord) Kind() string     { return string(KindQuizRecord) }
func (r QuizRecord) ObjectID() string { return r.ID }
func (r QuizRecord) TenantID() string { return r.Tenant }

// SurveyResponse is the answer to one survey question.
type SurveyResponse struct {
	QuestionID string `json:"question_id"`
	Choice     *int   `json:"choice,omitempty"`
	Text       string `json:"text,omitempty"`
}

type SurveyRecord struct {
	ID        string           `json:"id"`
	Tenant    string           `json:"tenant"`
	SurveyID  string           `json:"survey_id"`
	StudentID string           `json:"student_id,omitempty"`
	Responses []SurveyResponse `json:"responses"`
}

func (r SurveyRecord) Kind() string     { return string(KindSurveyRecord) }
func (r SurveyRecord) ObjectID() string { return r.ID }
func (r SurveyRecord) TenantID() string { return r.Tenant }

// Document is a free-form JSON entity.
type Document struct {
	ID     string          `json:"id"`
	Tenant string          `json:"tenant"`
	Body   json.RawMessage `json:"body"`
}

func (d Document) Kind() string     { return string(KindJSON) }
func (d Document) ObjectID() string { return d.ID }
func (d Document) TenantID() string { return d.Tenant }

type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Class string `json:"class,omitempty"`
}

// StudentRoster is the tenant's list of students.
type StudentRoster struct {
	ID       string    `json:"id"`
	Tenant   string    `json:"tenant"`
	Students []Student `json:"students"`
}

func (r StudentRoster) Kind() string     { return string(KindStudentRoster) }
func (r StudentRoster) ObjectID() string { return r.ID }
func (r StudentRoster) TenantID() string { return r.Tenant }

// Task is a queued unit of work such as grading a batch of scans.
type Task struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Target    string `json:"target"`
	CreatedAt int64  `json:"created_at"`
}

type TaskList struct {
	ID     string `json:"id"`
	Tenant string `json:"tenant"`
	Tasks  []Task `json:"tasks"`
}

func (l TaskList) Kind() string     { return string(KindTaskList) }
func (l TaskList) ObjectID() string { return l.ID }
func (l TaskList) TenantID() string { return l.Tenant }
