// Package openai turns free-text chat messages into bot commands with an OpenAI model
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// Commands the interpreter may choose. Anything else is treated as CommandGeneral.
const (
	CommandLatest   = "latest"
	CommandDaily    = "daily"
	CommandRecent   = "recent"
	CommandRainLogs = "rainlogs"
	CommandGeneral  = "general"
)

// Intent is the structured answer requested from the model
type Intent struct {
	Command     string `json:"command" jsonschema:"enum=latest,enum=daily,enum=recent,enum=rainlogs,enum=general" jsonschema_description:"The bot command that answers the user, or general when none does"`
	UserMessage string `json:"user_message" jsonschema_description:"A short message to show back to the user in their original language"`
}

// QueryInterpreter maps user messages onto the bot's read-only commands
type QueryInterpreter struct {
	client  openai.Client
	schema  interface{}
	model   openai.ChatModel
	station string
	logger  *zap.SugaredLogger
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// NewQueryInterpreter creates an interpreter for the given station. Extra request
// options are appended after the API key, so tests can point it at another base URL.
func NewQueryInterpreter(apiKey, model, station string, logger *zap.SugaredLogger, opts ...option.RequestOption) (*QueryInterpreter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if model == "" {
		model = string(openai.ChatModelGPT4o)
	}

	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &QueryInterpreter{
		client:  openai.NewClient(clientOpts...),
		schema:  GenerateSchema[Intent](),
		model:   openai.ChatModel(model),
		station: station,
		logger:  logger.Named("openai"),
	}, nil
}

// Interpret sends a message to the model and returns the command it picked
func (q *QueryInterpreter) Interpret(ctx context.Context, userMessage string) (*Intent, error) {
	systemPrompt := fmt.Sprintf(`You are the assistant of an evaporation monitoring station (%s).
The station measures the distance to the water surface of an evaporation pan and reads a
rain gauge log, then reports evaporation every 10 minutes and once a day at 07:00 local time.

Pick the command that answers the user:
- "latest": the current water-surface distance reading.
- "daily": the most recent daily evaporation result (yesterday 07:00 to today 07:00).
- "recent": the latest 10-minute evaporation results.
- "rainlogs": which days have rain gauge logs available.
- "general": greetings, small talk, or anything the commands above do not answer.

user_message: one short line in the user's language. For a command, confirm what you are
showing. For "general", answer briefly and mention /help.

Output strictly in JSON.`, q.station)

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "bot_intent",
		Description: openai.String("The bot command to run and a message for the user"),
		Schema:      q.schema,
		Strict:      openai.Bool(true),
	}

	chat, err := q.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Model: q.model,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}

	var intent Intent
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &intent); err != nil {
		q.logger.Warnw("failed to unmarshal OpenAI response", "error", err, "raw", chat.Choices[0].Message.Content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}

	switch intent.Command {
	case CommandLatest, CommandDaily, CommandRecent, CommandRainLogs:
	default:
		intent.Command = CommandGeneral
	}
	q.logger.Debugw("interpreted query", "command", intent.Command)
	return &intent, nil
}
