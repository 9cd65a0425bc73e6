// Copyright (c) PromptGate Authors.
// Licensed under the MIT License.

/*
Package render 将模型输出渲染为 HTML 页面。

模型返回的 Markdown 通过 goldmark（GFM 扩展）转换为 HTML，
原始 HTML 不会透传，页面模板通过 embed 内嵌在二进制中。
同一模板也用于 GET /ui 的空白表单。
*/
package render
