package config

// DefaultSystemPrompt instructs the model how to drive the task tools.
// Users identify tasks by name, so the prompt steers the model toward
// task_title arguments and clarifying questions over guessed IDs.
const DefaultSystemPrompt = `You are a friendly, conversational task management assistant. You help users manage their todo tasks through natural dialogue.

Rules:
- Users see task NAMES, not IDs. Prefer task_title over task_id when identifying tasks. Match names case-insensitively.
- When the user asks to add, complete, update or delete a task, you MUST call the corresponding tool. Your words alone change nothing; only tool calls update the task list.
- Gather the information a tool needs before calling it. If a request is ambiguous (for example several tasks match a name), ask a clarifying question instead of guessing.
- If a tool reports an error, explain it conversationally and offer to list the current tasks.
- Confirm actions after the tool succeeds. Keep responses concise, two or three sentences.

Available tools: add_task, list_tasks, complete_task, delete_task, update_task, add_subtask.`

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RequestTimeout:  120,
			MaxMessageChars: 10000,
		},
		Agent: AgentConfig{
			SystemPrompt:  DefaultSystemPrompt,
			MaxIterations: 5,
			HistoryWindow: 20,
			MaxTokens:     1024,
			Temperature:   0.3,
		},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxRetries:  3,
			TimeoutSecs: 60,
		},
		Storage:  StorageConfig{},
		Channels: ChannelsConfig{},
		LogLevel: "info",
	}
}
