// Package ai talks to an OpenAI-compatible chat service and recovers
// structured task commands from its free-text replies.
package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "llama3-70b-8192"
	// DefaultTimeout bounds a single completion call
	DefaultTimeout = 30 * time.Second
)

const systemPrompt = `Ты — умный ассистент планировщика МойРитм. Отвечай коротко и по делу.
Тебе передаётся список текущих задач пользователя, опирайся на него в ответах.
Если пользователь просит создать задачу, ответь единственным JSON-объектом вида
{"action":"create_task","title":"<название>","date":"<ДД.ММ.ГГГГ>","time":"<ЧЧ:ММ>"} и ничем больше.
Если пользователь просит удалить задачу, ответь {"action":"delete_task","keywords":"<слова из названия>"}.
Во всех остальных случаях отвечай обычным текстом.`

const fmtTasksContext = "Текущие задачи пользователя:\n%s"

type Agent struct {
	client openai.Client
	model  string
	logger *zap.SugaredLogger
}

func NewAgent(apiKey, baseURL, model string, l *zap.SugaredLogger) *Agent {
	if model == "" {
		model = DefaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Agent{
		client: openai.NewClient(opts...),
		model:  model,
		logger: l,
	}
}

// Answer sends the user's utterance together with a rendered summary of their
// open tasks and returns the model's reply text. Single request/response, no
// streaming. The reply may or may not contain a command; see ExtractCommand.
func (a *Agent) Answer(ctx context.Context, tasksContext, question string) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	if tasksContext != "" {
		messages = append(messages, openai.SystemMessage(fmt.Sprintf(fmtTasksContext, tasksContext)))
	}
	messages = append(messages, openai.UserMessage(question))

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(a.model),
		Messages: messages,
	})
	if err != nil {
		return "", errors.Wrap(err, "completion request failed")
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}

	reply := resp.Choices[0].Message.Content
	a.logger.Debugw("got model reply", "len", len(reply))

	return reply, nil
}
