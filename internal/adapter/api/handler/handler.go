package handler

import (
	"instapro/internal/usecase"
)

var (
	userHandler     *UserHandler
	presenceHandler *PresenceHandler
	uploadHandler   *UploadHandler
)

func Setup(
	directoryUseCase *usecase.DirectoryUseCase,
	presenceUseCase *usecase.PresenceUseCase,
	uploadUseCase *usecase.UploadUseCase,
) {
	userHandler = NewUserHandler(directoryUseCase)
	presenceHandler = NewPresenceHandler(presenceUseCase)
	uploadHandler = NewUploadHandler(uploadUseCase)
}

func GetUserHandler() *UserHandler {
	return userHandler
}

func GetPresenceHandler() *PresenceHandler {
	return presenceHandler
}

func GetUploadHandler() *UploadHandler {
	return uploadHandler
}
