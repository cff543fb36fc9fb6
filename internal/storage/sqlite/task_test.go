package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/model"
)

func TestCreateAndGetTask(t *testing.T) {
	tests := map[string]struct {
		task   model.Task
		expErr error
	}{
		"Creating a valid task should work": {
			task: taskFixture("01HRW9YZTEST000000000001", "Review bank statement"),
		},

		"Creating a task without title should fail": {
			task:   model.Task{ID: "01HRW9YZTEST000000000002", CreatedAt: time.Now().UTC()},
			expErr: model.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := newRepo(t)
			err := repo.CreateTask(context.Background(), test.task)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}

			require.NoError(err)

			got, err := repo.GetTask(context.Background(), test.task.ID)
			require.NoError(err)
			assert.Equal(test.task.ID, got.ID)
			assert.Equal(test.task.Title, got.Title)
			assert.False(got.Done())
			assert.Nil(got.Plan)
		})
	}
}

func TestCreateTaskDuplicate(t *testing.T) {
	repo := newRepo(t)
	task := taskFixture("01HRW9YZTEST000000000001", "Review bank statement")

	require.NoError(t, repo.CreateTask(context.Background(), task))
	err := repo.CreateTask(context.Background(), task)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestGetTaskNotFound(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListTasks(t *testing.T) {
	tests := map[string]struct {
		includeDone bool
		expTitles   []string
	}{
		"Listing with completed tasks should return everything": {
			includeDone: true,
			expTitles:   []string{"third", "second", "first"},
		},

		"Listing without completed tasks should filter them out": {
			includeDone: false,
			expTitles:   []string{"third", "first"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := newRepo(t)
			ctx := context.Background()

			base := time.Now().UTC()
			for i, fixture := range []struct {
				id, title string
			}{
				{"01HRW9YZTEST000000000001", "first"},
				{"01HRW9YZTEST000000000002", "second"},
				{"01HRW9YZTEST000000000003", "third"},
			} {
				task := model.Task{ID: fixture.id, Title: fixture.title, CreatedAt: base.Add(time.Duration(i) * time.Second)}
				require.NoError(repo.CreateTask(ctx, task))
			}
			require.NoError(repo.SetTaskCompleted(ctx, "01HRW9YZTEST000000000002", true))

			tasks, err := repo.ListTasks(ctx, test.includeDone)
			require.NoError(err)

			titles := make([]string, 0, len(tasks))
			for _, task := range tasks {
				titles = append(titles, task.Title)
			}
			assert.Equal(test.expTitles, titles)
		})
	}
}

func TestSetTaskCompletedToggle(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newRepo(t)
	ctx := context.Background()
	task := taskFixture("01HRW9YZTEST000000000001", "toggle me")
	require.NoError(repo.CreateTask(ctx, task))

	// Toggling twice returns the task to its original state.
	require.NoError(repo.SetTaskCompleted(ctx, task.ID, true))
	got, err := repo.GetTask(ctx, task.ID)
	require.NoError(err)
	assert.True(got.Done())

	require.NoError(repo.SetTaskCompleted(ctx, task.ID, false))
	got, err = repo.GetTask(ctx, task.ID)
	require.NoError(err)
	assert.False(got.Done())
	assert.Nil(got.CompletedAt)
}

func TestSetTaskCompletedNotFound(t *testing.T) {
	repo := newRepo(t)

	err := repo.SetTaskCompleted(context.Background(), "missing", true)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDeleteTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(repo.CreateTask(ctx, taskFixture("01HRW9YZTEST000000000001", "keep")))
	require.NoError(repo.CreateTask(ctx, taskFixture("01HRW9YZTEST000000000002", "drop")))

	n, err := repo.DeleteTasks(ctx, []string{"01HRW9YZTEST000000000002", "missing"})
	require.NoError(err)
	assert.Equal(1, n)

	n, err = repo.DeleteTasks(ctx, nil)
	require.NoError(err)
	assert.Equal(0, n)

	tasks, err := repo.ListTasks(ctx, true)
	require.NoError(err)
	require.Len(tasks, 1)
	assert.Equal("keep", tasks[0].Title)
}

func TestSaveAndGetTaskPlan(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := newRepo(t)
	ctx := context.Background()
	task := taskFixture("01HRW9YZTEST000000000001", "plan me")
	require.NoError(repo.CreateTask(ctx, task))

	plan := model.TaskPlan{
		TaskID:      task.ID,
		Provider:    "openrouter:deepseek/deepseek-v3",
		Content:     `{"title":"plan me"}`,
		SearchTerms: []string{"invoice", "statement"},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(repo.SaveTaskPlan(ctx, plan))

	got, err := repo.GetTaskPlan(ctx, task.ID)
	require.NoError(err)
	assert.Equal(plan.Provider, got.Provider)
	assert.Equal(plan.Content, got.Content)
	assert.Equal(plan.SearchTerms, got.SearchTerms)

	// Saving again overwrites the previous plan, no history is kept.
	plan.Provider = "stub"
	plan.Content = `{"title":"new plan"}`
	plan.SearchTerms = nil
	require.NoError(repo.SaveTaskPlan(ctx, plan))

	got, err = repo.GetTaskPlan(ctx, task.ID)
	require.NoError(err)
	assert.Equal("stub", got.Provider)
	assert.Equal(`{"title":"new plan"}`, got.Content)
	assert.Nil(got.SearchTerms)

	// The plan is also loaded with the task itself.
	gotTask, err := repo.GetTask(ctx, task.ID)
	require.NoError(err)
	require.NotNil(gotTask.Plan)
	assert.Equal("stub", gotTask.Plan.Provider)
}

func TestSaveTaskPlanUnknownTask(t *testing.T) {
	repo := newRepo(t)

	err := repo.SaveTaskPlan(context.Background(), model.TaskPlan{
		TaskID:    "missing",
		Provider:  "stub",
		Content:   "{}",
		CreatedAt: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGetTaskPlanNotFound(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.CreateTask(ctx, taskFixture("01HRW9YZTEST000000000001", "no plan")))

	_, err := repo.GetTaskPlan(ctx, "01HRW9YZTEST000000000001")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
