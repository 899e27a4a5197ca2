package controller

import "errors"

var (
	ErrParseRequest = errors.New("failed to parse request")

	ErrUserRegister  = errors.New("failed to register user")
	ErrUserExists    = errors.New("user already exists")
	ErrGenerateToken = errors.New("failed to generate token")
	ErrUserLogin     = errors.New("failed to login")
	ErrInvalidLogin  = errors.New("invalid email or password")

	ErrGetArchiveFile     = errors.New("failed to get archive file")
	ErrArchiveTooLarge    = errors.New("archive is too large")
	ErrNotZipArchive      = errors.New("only .zip archives are supported")
	ErrSubmitImport       = errors.New("failed to submit import job")
	ErrSendImportMessage  = errors.New("failed to dispatch import job")
	ErrGetImportJob       = errors.New("failed to get import job")
	ErrGetImportJobs      = errors.New("failed to get import jobs")
	ErrImportJobNotFound  = errors.New("import job not found")
	ErrCancelImportJob    = errors.New("failed to cancel import job")
	ErrImportNotRunning   = errors.New("import job is not pending or running on this server")
	ErrResumeImportJob    = errors.New("failed to resume import job")
	ErrImportNotResumable = errors.New("only failed, cancelled or abandoned import jobs can be resumed")
	ErrSubscribeProgress  = errors.New("failed to subscribe to import progress")

	ErrInvalidID          = errors.New("invalid id")
	ErrGetAssociation     = errors.New("failed to get association")
	ErrAssociationMissing = errors.New("association not found")
	ErrGetProperties      = errors.New("failed to get properties")
	ErrGetDocuments       = errors.New("failed to get documents")
	ErrGetDocument        = errors.New("failed to get document")
	ErrDocumentNotFound   = errors.New("document not found")
)
