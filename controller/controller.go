package controller

import (
	importjob "community-intelligence-backend/service/import-job"
	"community-intelligence-backend/service/mq"
	"community-intelligence-backend/service/storage"
)

var (
	importJobs  *importjob.Service
	urlResolver *storage.URLResolver

	// 测试中替换为不依赖RocketMQ的实现
	sendMessage = mq.SendMessage
)

// Setup 注入处理器依赖的服务，在注册路由前调用
func Setup(jobs *importjob.Service, resolver *storage.URLResolver) {
	importJobs = jobs
	urlResolver = resolver
}
