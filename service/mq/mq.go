package mq

import (
	"community-intelligence-backend/config"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/apache/rocketmq-client-go/v2"
	c "github.com/apache/rocketmq-client-go/v2/consumer"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/apache/rocketmq-client-go/v2/producer"
	"github.com/apache/rocketmq-client-go/v2/rlog"
	"github.com/avast/retry-go/v4"
)

const (
	TopicDocumentImport = "topic_document_import"
	TagImportArchive    = "tag_import_archive"

	consumeGroupDocumentImport = "cg_document_import"

	sendMessageAttempts = 3
	maxReconsumeTimes   = 3
	// 导入任务耗时较长，限制单实例并发
	consumeGoroutineNums = 2
)

var (
	// 全局生产者
	producerInstance rocketmq.Producer

	// 文档导入消费者
	consumerDocumentImport rocketmq.PushConsumer

	// 消息处理器表
	handlers = make(map[string]MessageHandler)
)

type MessageHandler func(context.Context, *primitive.MessageExt) error

type Message struct {
	Topic   string
	Tag     string
	Payload any
}

// Init 创建生产者和消费者
func Init(cfg config.MQConfig) error {
	// 设置RocketMQ客户端（使用rlog）的日志级别
	rlog.SetLogLevel("warn")

	var err error
	consumerDocumentImport, err = rocketmq.NewPushConsumer(
		c.WithNameServer([]string{cfg.NameServer}),
		c.WithGroupName(consumeGroupDocumentImport),
		c.WithConsumerModel(c.Clustering),
		c.WithConsumeFromWhere(c.ConsumeFromLastOffset),
		c.WithMaxReconsumeTimes(maxReconsumeTimes),
		c.WithConsumeGoroutineNums(consumeGoroutineNums),
	)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %v", err)
	}

	producerInstance, err = rocketmq.NewProducer(
		producer.WithNameServer([]string{cfg.NameServer}),
	)
	if err != nil {
		return fmt.Errorf("failed to create producer: %v", err)
	}
	return nil
}

// Run 注册导入任务处理器并启动生产者和消费者
func Run(importHandler MessageHandler) error {
	if err := registerHandler(consumerDocumentImport, TopicDocumentImport, TagImportArchive, importHandler); err != nil {
		return fmt.Errorf("failed to register handler, topic: %s, tag: %s, err: %v", TopicDocumentImport, TagImportArchive, err)
	}

	if err := producerInstance.Start(); err != nil {
		return fmt.Errorf("failed to start producer: %v", err)
	}

	if err := consumerDocumentImport.Start(); err != nil {
		return fmt.Errorf("failed to start consumer: %v", err)
	}
	return nil
}

// registerHandler 注册消息处理器
func registerHandler(consumer rocketmq.PushConsumer, topic string, tag string, handler MessageHandler) error {
	handlers[topic] = handler

	selector := c.MessageSelector{}
	if tag != "" {
		selector = c.MessageSelector{
			Type:       c.TAG,
			Expression: tag,
		}
	}

	err := consumer.Subscribe(topic, selector, func(ctx context.Context, messages ...*primitive.MessageExt) (c.ConsumeResult, error) {
		return dispatch(ctx, messages...)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %v", topic, err)
	}

	return nil
}

// dispatch 按topic分发消息，任一消息处理失败时整批稍后重试
func dispatch(ctx context.Context, messages ...*primitive.MessageExt) (c.ConsumeResult, error) {
	for _, msg := range messages {
		h := handlers[msg.Topic]
		if h == nil {
			slog.Warn("No message handler found for topic", "topic", msg.Topic)
			continue
		}

		if err := h(ctx, msg); err != nil {
			slog.Error("Failed to process message",
				"topic", msg.Topic,
				"msg_id", msg.MsgId,
				"reconsume_times", msg.ReconsumeTimes,
				"err", err)
			return c.ConsumeRetryLater, err
		}
	}
	return c.ConsumeSuccess, nil
}

// NewMessage 将载荷序列化为MQ消息
func NewMessage(message *Message) (*primitive.Message, error) {
	payloadJSON, err := json.Marshal(message.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %v", err)
	}

	msg := primitive.NewMessage(message.Topic, payloadJSON)
	if message.Tag != "" {
		msg = msg.WithTag(message.Tag)
	}
	return msg, nil
}

// SendMessage 向MQ发送消息
func SendMessage(ctx context.Context, message *Message) error {
	if producerInstance == nil {
		return fmt.Errorf("mq producer is not initialized")
	}

	msg, err := NewMessage(message)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			_, err := producerInstance.SendSync(ctx, msg)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(sendMessageAttempts),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying to send message",
				"attempt", n+1,
				"topic", msg.Topic,
				"err", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s after retries: %v", msg.Topic, err)
	}

	return nil
}

// Shutdown 关闭MQ服务
func Shutdown() {
	if producerInstance != nil {
		producerInstance.Shutdown()
	}
	if consumerDocumentImport != nil {
		consumerDocumentImport.Shutdown()
	}
}
