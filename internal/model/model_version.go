package model

import "time"

// ModelVersion stamps one retrain batch. Rows are never updated.
type ModelVersion struct {
	ID        int64                  `json:"id"`
	Name      string                 `json:"name"`
	Dimension int                    `json:"dimension"`
	Params    map[string]interface{} `json:"params"`
	Metrics   map[string]interface{} `json:"metrics"`
	CreatedAt time.Time              `json:"created_at"`
}
