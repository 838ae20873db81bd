// Package config provides configuration management for agentctl.
//
// Configuration is loaded and merged in the following order, later sources
// overriding earlier ones:
//
//  1. Default Configuration (embedded in binary)
//  2. User Configuration (~/.config/agentctl/config.yaml)
//  3. Project Configuration (./.agentctl/config.yaml)
//  4. A .env file in the working directory (never overrides exported variables)
//  5. Environment variables (PROJECT_ENDPOINT, MODEL_DEPLOYMENT_NAME, AGENTCTL_API_KEY,
//     AGENTCTL_AUTH_MODE, AGENTCTL_LOG_LEVEL, AGENTCTL_DEBUG)
//
// # Configuration Structure
//
//	service:
//	  endpoint: "https://my-res.services.ai.azure.com/api/projects/my-project"
//	  modelDeployment: "gpt-4o"
//	  apiVersion: "v1"
//	  auth:
//	    mode: "azure"           # or "apiKey"
//	    scope: "https://ai.azure.com/.default"
//
//	agent:
//	  name: "microsoft-agent"
//	  instructions: "You are an expert on Microsoft information"
//
//	toolHost:
//	  transport: "stdio"        # or "sse", "streamable-http" (with url)
//	  command: ["python", "mcp_server.py"]
//	  env:
//	    KEY: "value"
//	  handshakeTimeout: 30s
//
//	orchestrator:
//	  pollInterval: 1s
//	  maxPolls: 0               # 0 polls until the run is terminal
//	  maxParallelTools: 4
//
//	session:
//	  prompt: "You: "
//	  greeting: "Hi! I'd like to chat with you."
//	  color: true
//	  exitTokens: ["exit", "quit", "離開", "退出"]
//
//	teardown:
//	  deleteAgent: true
//	  deleteThread: true
//
//	logging:
//	  level: "info"
//	  format: "text"
//
// When no tool host command (or URL) is configured the agent is created without tools.
package config
