package email

import "html/template"

var templates = template.Must(template.New("email").Parse(layout + verificationBody + passwordResetBody + passwordChangedBody))

const layout = `
{{define "header"}}<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #4F46E5;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f9f9f9;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .code {
            font-size: 28px;
            letter-spacing: 6px;
            font-weight: bold;
            text-align: center;
            margin: 20px 0;
        }
        .button {
            display: inline-block;
            background-color: #4F46E5;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>{{end}}
{{define "footer"}}
    <div class="footer">
        <p>&copy; 2026 OTP Auth. All rights reserved.</p>
    </div>
</body>
</html>{{end}}
`

const verificationBody = `
{{define "verification"}}{{template "header"}}
    <div class="header">
        <h1>Welcome!</h1>
    </div>
    <div class="content">
        <h2>Hi {{.Firstname}}, verify your email address</h2>
        <p>Use the code below to activate your account.</p>
        <p class="code">{{.Code}}</p>
        <p>The code expires in {{.Minutes}} minutes.</p>
        <p style="margin-top: 30px;">If you didn't create an account, you can safely ignore this email.</p>
    </div>
{{template "footer"}}{{end}}
`

const passwordResetBody = `
{{define "passwordReset"}}{{template "header"}}
    <div class="header">
        <h1>Password Reset Request</h1>
    </div>
    <div class="content">
        <h2>Hi {{.Firstname}}, reset your password</h2>
        <p>You requested to reset your password. Click the button below to create a new password.</p>

        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Reset Password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #4F46E5;">{{.ResetLink}}</p>

        <p>This link will expire in {{.Hours}} hours.</p>
        <p style="margin-top: 30px;">If you didn't request a password reset, you can safely ignore this email. Your password will remain unchanged.</p>
    </div>
{{template "footer"}}{{end}}
`

const passwordChangedBody = `
{{define "passwordChanged"}}{{template "header"}}
    <div class="header">
        <h1>Password Changed</h1>
    </div>
    <div class="content">
        <h2>Hi {{.Firstname}},</h2>
        <p>The password for your account was just changed.</p>
        <p style="margin-top: 30px;">If you did not make this change, reset your password immediately and contact support.</p>
    </div>
{{template "footer"}}{{end}}
`
