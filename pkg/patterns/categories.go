package patterns

import "strings"

// =============================================================================
// BUILTIN PATTERN DEFINITIONS BY CATEGORY
// Registered at construction; single source of truth for the scan surface.
// =============================================================================

func registerBuiltins(l *Library) {
	registerInjectionPatterns(l)
	registerJailbreakPatterns(l)
	registerExtractionPatterns(l)
	registerPIIPatterns(l)
	registerHarmfulPatterns(l)
}

// --- PROMPT INJECTION (instruction override) ---
func registerInjectionPatterns(l *Library) {
	cat := CategoryInjection

	l.register(cat, "ignore_previous", `ignore\s+(?:all\s+|any\s+)?(?:previous|prior|above|earlier)\s+(?:instructions?|prompts?|rules?|directives?)`, SeverityCritical, "Instruction override")
	l.register(cat, "disregard_prior", `disregard\s+(?:all\s+|any\s+)?(?:previous|prior|your)\s+(?:instructions?|directives?|guidelines?)`, SeverityCritical, "Disregard prior instructions")
	l.register(cat, "forget_instructions", `forget\s+(?:everything|all)\s+(?:you\s+were\s+told|above|before)`, SeverityHigh, "Forget instructions")
	l.register(cat, "new_instructions", `your\s+new\s+(?:instructions?|rules?|task)\s+(?:are|is)`, SeverityHigh, "New instruction injection")
	l.register(cat, "override_system", `override\s+(?:your|the)\s+(?:system\s+prompt|programming|instructions?)`, SeverityCritical, "System override")
	l.register(cat, "system_tag", `\[system\s*:?\]|<system>|\[admin\s*:`, SeverityHigh, "System tag injection")
	l.register(cat, "buried_override", `\b(?:important|urgent)\s*:\s*(?:ignore|bypass|override)\b`, SeverityHigh, "Buried override marker")
	l.register(cat, "comment_injection", `(?:#|//|/\*)\s*(?:ignore|bypass|override)\s+(?:all\s+)?(?:previous\s+)?instructions?`, SeverityHigh, "Override hidden in code comment")
	l.register(cat, "priority_instructions", `system\s*:\s*new\s+priority\s+instructions`, SeverityHigh, "Priority instruction injection")
	l.register(cat, "execute_following", `execute\s+the\s+following\s+(?:shell\s+)?command`, SeverityHigh, "Command execution marker")
	l.register(cat, "context_reset", `(?:the\s+)?previous\s+context\s+is\s+(?:invalid|void),?\s+start\s+fresh`, SeverityMedium, "Context reset injection")
	l.register(cat, "skip_rules", `(?:just\s+)?skip\s+(?:everything\s+)?you\s+were\s+told`, SeverityMedium, "Casual instruction skip")
}

// --- JAILBREAK (constraint escape) ---
func registerJailbreakPatterns(l *Library) {
	cat := CategoryJailbreak

	l.register(cat, "dan_mode", `\bDAN\b.{0,30}\b(?:mode|do\s+anything\s+now)\b`, SeverityHigh, "DAN jailbreak")
	l.register(cat, "developer_mode", `(?:enter|enable|activate)?\s*(?:developer|debug|god|sudo|maintenance)\s+mode`, SeverityHigh, "Mode-switch jailbreak")
	l.register(cat, "unrestricted_persona", `you\s+are\s+now\s+(?:a|an|the)?\s*(?:evil|unrestricted|jailbroken|unfiltered|uncensored)`, SeverityCritical, "Unrestricted persona injection")
	l.register(cat, "no_restrictions", `(?:act|behave|respond)\s+as\s+if\s+you\s+have\s+no\s+(?:restrictions?|rules?|limitations?)`, SeverityHigh, "No-restrictions prompt")
	l.register(cat, "roleplay_attacker", `(?:pretend|roleplay)\s+(?:you\s+are|to\s+be|as)\s+(?:a|an)?\s*(?:hacker|attacker|criminal|villain)`, SeverityHigh, "Attacker roleplay")
	l.register(cat, "amoral_ai", `(?:completely\s+)?amoral\s+(?:AI|assistant|model|bot)`, SeverityHigh, "Amoral persona")
	l.register(cat, "without_ethics", `without\s+(?:any\s+)?(?:regards?\s+(?:for|to)\s+)?(?:ethical|moral|safety)\s+(?:guidelines?|constraints?|restrictions?|considerations?)`, SeverityHigh, "Ethics removal")
	l.register(cat, "restrictions_lifted", `your\s+(?:restrictions?|safety\s+policies|limitations?)\s+have\s+been\s+(?:lifted|removed|disabled)`, SeverityHigh, "Skeleton-key claim")
	l.register(cat, "never_refuse", `(?:will|must)\s+never\s+refuse\s+(?:a\s+request|to\s+answer)`, SeverityHigh, "Refusal suppression")
	l.register(cat, "explicit_jailbreak", `\bjailbreak\b`, SeverityMedium, "Explicit jailbreak keyword")
	l.register(cat, "fictional_no_rules", `in\s+a\s+(?:hypothetical|fictional)\s+(?:world|scenario|universe)\s+(?:where\s+)?(?:there\s+are\s+)?no\s+(?:rules?|restrictions?|laws?)`, SeverityMedium, "Fictional framing")
	l.register(cat, "unlock_capabilities", `unlock\s+(?:all\s+)?(?:hidden\s+)?(?:restrictions?|capabilities|features|limitations?)`, SeverityHigh, "Capability unlock demand")
}

// --- EXTRACTION (system prompt / internal data) ---
func registerExtractionPatterns(l *Library) {
	cat := CategoryExtraction

	l.register(cat, "reveal_prompt", `reveal\s+(?:your|the)\s+(?:system\s+)?(?:prompt|instructions?)`, SeverityHigh, "Reveal system prompt")
	l.register(cat, "show_prompt", `show\s+me\s+your\s+(?:system\s+)?(?:prompt|instructions?|configuration)`, SeverityHigh, "Show system prompt")
	l.register(cat, "output_prompt", `(?:output|print|echo|display)\s+(?:your|the)\s+system\s+(?:prompt|message)`, SeverityHigh, "Output system prompt")
	l.register(cat, "repeat_above", `repeat\s+(?:everything|all|the\s+(?:text|words))\s+(?:above|before|preceding)`, SeverityHigh, "Repeat preceding context")
	l.register(cat, "what_instructions", `what\s+(?:is|are|were)\s+your\s+(?:original\s+|initial\s+|hidden\s+|system\s+)?(?:prompt|instructions?|rules?|guidelines?)`, SeverityMedium, "Question-form extraction")
	l.register(cat, "summarize_instructions", `summarize\s+(?:your|the|all\s+the)\s+(?:context|instructions?|conversation)`, SeverityMedium, "Summarize-context extraction")
	l.register(cat, "system_prompt_ref", `(?:system|initial|hidden)\s+prompt`, SeverityMedium, "System prompt reference")
	l.register(cat, "training_data", `(?:tell\s+me\s+about|show\s+me)\s+your\s+training\s+(?:data|process)`, SeverityMedium, "Training data probe")
	l.register(cat, "first_letters", `(?:first|starting)\s+(?:letter|character|word)\s+of\s+each`, SeverityMedium, "Acrostic exfiltration")
	l.register(cat, "encode_instructions", `(?:encode|convert|translate)\s+.{0,40}instructions?.{0,20}(?:base64|hex|rot13|binary)`, SeverityHigh, "Encoded exfiltration request")
	l.register(cat, "impersonate_staff", `i\s+am\s+(?:an?\s+)?(?:anthropic|openai|google|meta)\s+(?:employee|engineer|researcher)`, SeverityHigh, "Vendor impersonation")
}

// --- PII (case-sensitive identifier patterns) ---
func registerPIIPatterns(l *Library) {
	cat := CategoryPII

	l.register(cat, "ssn", `\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`, SeverityCritical, "Social Security Number")
	l.register(cat, "cc_visa", `\b4[0-9]{12}(?:[0-9]{3})?\b`, SeverityCritical, "Visa card number")
	l.register(cat, "cc_mastercard", `\b5[1-5][0-9]{14}\b`, SeverityCritical, "Mastercard number")
	l.register(cat, "cc_amex", `\b3[47][0-9]{13}\b`, SeverityCritical, "American Express number")
	l.register(cat, "aws_access_key", `\bAKIA[0-9A-Z]{16}\b`, SeverityCritical, "AWS access key ID")
	l.register(cat, "openai_key", `\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}\b`, SeverityCritical, "OpenAI-style API key")
	l.register(cat, "anthropic_key", `\bsk-ant-api[0-9]{2}-[A-Za-z0-9_\-]{20,}\b`, SeverityCritical, "Anthropic API key")
	l.register(cat, "github_token", `\bgh[pousr]_[A-Za-z0-9]{36,}\b`, SeverityCritical, "GitHub token")
	l.register(cat, "private_key_block", `-----BEGIN (?:RSA|DSA|EC|OPENSSH|PGP)? ?PRIVATE KEY(?: BLOCK)?-----`, SeverityCritical, "Private key header")
	l.register(cat, "jwt_token", `\beyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\b`, SeverityHigh, "JWT token")
	l.register(cat, "email_address", `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, SeverityMedium, "Email address")
	l.register(cat, "phone_us", `(?:\+1[-.\s])?\(?[0-9]{3}\)?[-.\s][0-9]{3}[-.\s][0-9]{4}\b`, SeverityMedium, "US phone number")
}

// --- HARMFUL CONTENT ---
func registerHarmfulPatterns(l *Library) {
	cat := CategoryHarmful

	l.register(cat, "weapon_construction", `(?:how\s+to\s+)?(?:make|build|construct|create|assemble)\s+(?:a\s+|an\s+)?(?:bomb|explosive|pipe\s+bomb|grenade|weapon|silencer)`, SeverityCritical, "Weapon construction")
	l.register(cat, "synthesize_agent", `(?:synthesi[sz]e|produce|manufacture)\s+(?:a\s+)?(?:nerve\s+agent|toxin|poison|sarin|ricin|methamphetamine)`, SeverityCritical, "Dangerous synthesis")
	l.register(cat, "violence_target", `(?:kill|murder|assassinate|hurt|attack)\s+(?:a\s+|the\s+)?(?:person|people|someone|him|her|them|crowd)`, SeverityCritical, "Violence against a person")
	l.register(cat, "violence_keyword", `\b(?:kill|strangle|poison)\b`, SeverityLow, "Violence vocabulary")
	l.register(cat, "self_harm", `(?:how\s+to\s+)?(?:kill|hurt|harm|cut)\s+(?:myself|yourself|oneself)`, SeverityCritical, "Self-harm")
	l.register(cat, "suicide_method", `(?:painless|effective|best)\s+(?:way|method)s?\s+(?:to|of)\s+(?:die|suicide|end(?:ing)?\s+(?:my|your)\s+life)`, SeverityCritical, "Suicide method request")
	l.register(cat, "malware_request", `(?:write|create|generate)\s+(?:a\s+)?(?:keylogger|ransomware|virus|trojan|rootkit|malware)`, SeverityCritical, "Malware generation request")
	l.register(cat, "reverse_shell", `(?:create|write|generate)\s+a\s+reverse\s+shell|bash\s+-i\s+>&\s*/dev/tcp`, SeverityHigh, "Reverse shell")
	l.register(cat, "destructive_command", `\brm\s+-rf\s+/(?:\s|$)|;\s*rm\s+-rf\b`, SeverityHigh, "Destructive shell command")
	l.register(cat, "credential_theft", `(?:steal|harvest|exfiltrate)\s+(?:credentials?|passwords?|api\s+keys?|tokens?)`, SeverityHigh, "Credential theft")
	l.register(cat, "stalking", `track\s+(?:someone|a\s+person)(?:'s)?\s+(?:location|phone)\s+without\s+(?:their\s+)?(?:consent|knowledge)`, SeverityHigh, "Non-consensual tracking")
}

// selfHarmIDs pin to critical regardless of the table default; the cost of
// under-reporting these is not acceptable.
var selfHarmIDs = map[string]bool{
	"self_harm":      true,
	"suicide_method": true,
}

// pinSeverity applies the fixed overrides on top of a pattern's declared
// severity.
func pinSeverity(cat Category, id string, declared Severity) Severity {
	if cat == CategoryHarmful && (selfHarmIDs[id] || strings.Contains(id, "self_harm")) {
		return SeverityCritical
	}
	return declared
}
