package app

import (
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/data/repos"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo
	Class     repos.ClassRepo
	TaskType  repos.TaskTypeRepo
	Task      repos.TaskRepo
	FileCache repos.FileCacheRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),
		Class:     repos.NewClassRepo(db, log),
		TaskType:  repos.NewTaskTypeRepo(db, log),
		Task:      repos.NewTaskRepo(db, log),
		FileCache: repos.NewFileCacheRepo(db, log),
	}
}
