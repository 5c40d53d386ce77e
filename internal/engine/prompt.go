package engine

// LLM prompt templates, data only.

// DefaultSummaryPrompt is the system prompt used when SUMMARY_PROMPT is unset.
const DefaultSummaryPrompt = `请根据以下视频字幕和简介，生成一个简洁明了的视频内容总结。总结应该包含视频的主要内容、关键信息和要点。请用中文回答。`

// summaryUserPrompt carries the video content.
// Args: title, description section, text label, text, comments section.
const summaryUserPrompt = `视频标题：%s

%s%s：
%s
%s`

// summaryDescSection wraps a non-empty description. Args: description.
const summaryDescSection = "视频简介：%s\n\n"

// summaryCommentsSection wraps non-empty comments. Args: comments.
const summaryCommentsSection = "\n热门评论：\n%s\n"
