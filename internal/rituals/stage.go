package rituals

import "github.com/HammerMeetNail/roots/internal/models"

var stageThresholds = []struct {
	min   int
	stage models.TreeStage
}{
	{50, models.TreeStageFruit},
	{30, models.TreeStageBlossom},
	{14, models.TreeStageFull},
	{7, models.TreeStageYoung},
	{3, models.TreeStageSapling},
}

// StageOf maps a streak to its tree stage.
func StageOf(streak int) models.TreeStage {
	for _, t := range stageThresholds {
		if streak >= t.min {
			return t.stage
		}
	}
	return models.TreeStageSprout
}
